// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/forwarder/bridge"
	"github.com/bureau-foundation/forwarder/lib/config"
	"github.com/bureau-foundation/forwarder/lib/process"
	"github.com/bureau-foundation/forwarder/lib/version"
	"github.com/bureau-foundation/forwarder/transport"
)

const binaryName = "vsock-forwarder"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	cfg, err := parseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		return err
	}
	if cfg == nil {
		// --help or --version was handled.
		return nil
	}

	logger, err := newLogger(os.Stdout, cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the forwarder until ctx is cancelled. Only the initial bind
// can fail it; everything after that is retried and logged.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	forwarder, err := newBridge(cfg, logger)
	if err != nil {
		return err
	}
	if err := forwarder.Start(ctx); err != nil {
		if ctx.Err() != nil {
			// Signalled while binding.
			return nil
		}
		return err
	}
	logger.Info("started", "version", version.Info(), "transport", string(cfg.Transport))

	<-ctx.Done()
	logger.Info("shutting down", "sessions", forwarder.Stats().Open)
	forwarder.Stop()

	stats := forwarder.Stats()
	logger.Info("stopped",
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"connect_failures", stats.ConnectFailures,
		"upstream_bytes", stats.UpstreamBytes,
		"downstream_bytes", stats.DownstreamBytes,
	)
	return nil
}

// newBridge translates the configuration into a Bridge.
func newBridge(cfg *config.Config, logger *slog.Logger) (*bridge.Bridge, error) {
	contextID, err := transport.ParseContextID(cfg.Remote.CID)
	if err != nil {
		return nil, err
	}

	var dialer transport.Dialer
	switch cfg.Transport {
	case config.Vsock:
		dialer = &transport.VsockDialer{Timeout: cfg.Limits.DialTimeout}
	case config.TCP:
		dialer = &transport.LoopbackDialer{Host: cfg.Remote.Host, Timeout: cfg.Limits.DialTimeout}
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	return &bridge.Bridge{
		Endpoint: bridge.Endpoint{
			LocalAddress: cfg.Listen.Address,
			LocalPort:    cfg.Listen.Port,
			Remote: transport.Peer{
				ContextID: contextID,
				Port:      uint32(cfg.Remote.Port),
			},
		},
		Dialer: dialer,
		Limits: bridge.Limits{
			MaxSessions: cfg.Limits.MaxSessions,
			AcceptRate:  cfg.Limits.AcceptRate,
			AcceptBurst: cfg.Limits.AcceptBurst,
			IdleTimeout: cfg.Limits.IdleTimeout,
			DialTimeout: cfg.Limits.DialTimeout,
			BufferSize:  int(cfg.Limits.BufferSize.Bytes()),
		},
		Backoff: bridge.BackoffConfig{
			Rebind:  cfg.Backoff.Rebind,
			Handoff: cfg.Backoff.Handoff,
			Max:     cfg.Backoff.Max,
		},
		Logger: logger,
	}, nil
}
