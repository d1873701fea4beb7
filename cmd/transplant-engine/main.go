// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// transplant-engine is the computation-engine daemon. It dials the
// controller's endpoint and services requests until a die request or
// a transport failure.
//
// Configuration comes from a YAML file (TRANSPLANT_CONFIG or
// --config), with flags overriding individual fields. With interrupts
// enabled, SIGINT aborts the call in progress instead of killing the
// process; the dispatch loop answers the interrupted call with an
// error and keeps serving.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bastibe/transplant/engine"
	"github.com/bastibe/transplant/lib/config"
	"github.com/bastibe/transplant/lib/version"
	"github.com/bastibe/transplant/proxy"
	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flags := pflag.NewFlagSet("transplant-engine", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvVar+")")
	endpointFlag := flags.String("endpoint", "", "controller endpoint, tcp://host:port or ipc:///path")
	formatFlag := flags.String("format", "", "wire format, text or binary")
	logLevelFlag := flags.String("log-level", "", "log level: debug, info, warn, error")
	snapshotDirFlag := flags.String("snapshot-dir", "", "directory for relative save/load paths")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("transplant-engine %s\n", version.Info())
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if *endpointFlag != "" {
		cfg.Endpoint = *endpointFlag
	}
	if *formatFlag != "" {
		cfg.Format = *formatFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	if *snapshotDirFlag != "" {
		cfg.SnapshotDir = *snapshotDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	endpoint, err := transport.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}
	format, err := wire.FormatByName(cfg.Format)
	if err != nil {
		return err
	}

	socket, err := transport.Dial(context.Background(), endpoint)
	if err != nil {
		return err
	}
	defer socket.Close()
	logger.Info("connected to controller", "endpoint", endpoint.String(), "format", format.Name())

	env := engine.NewEnvironment()
	env.SnapshotDir = cfg.SnapshotDir
	env.Logger = logger

	loop := &engine.Loop{
		Socket: socket,
		Env:    env,
		Cache:  proxy.NewCache(),
		Format: format,
		Logger: logger,
	}
	if cfg.Interrupt {
		notifier := &engine.Notifier{}
		stop := make(chan struct{})
		defer close(stop)
		notifier.Watch(stop, os.Interrupt)
		loop.Interrupt = notifier
	}
	return loop.Serve()
}
