// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/forwarder/lib/config"
	"github.com/bureau-foundation/forwarder/lib/process"
	"github.com/bureau-foundation/forwarder/lib/version"
	"github.com/bureau-foundation/forwarder/transport"
)

// byteSizeFlag adapts datasize.ByteSize to pflag.Value so sizes can be
// given as "1KB", "64KB", or plain bytes. KB is 1024 bytes.
type byteSizeFlag struct {
	size *datasize.ByteSize
}

func (f byteSizeFlag) String() string {
	if f.size == nil {
		return ""
	}
	return f.size.String()
}

func (f byteSizeFlag) Set(value string) error {
	return f.size.UnmarshalText([]byte(value))
}

func (f byteSizeFlag) Type() string { return "size" }

// parseArgs builds the configuration from the command line. It returns
// a nil config when --help or --version was written to stdout.
//
// Precedence: flags and positional arguments, then the --config file,
// then config.Default.
func parseArgs(args []string, stdout io.Writer) (*config.Config, error) {
	defaults := config.Default()

	var (
		configPath  string
		transportID string
		maxSessions int
		acceptRate  float64
		acceptBurst int
		idleTimeout time.Duration
		dialTimeout time.Duration
		bufferSize  = defaults.Limits.BufferSize
		rebind      time.Duration
		handoff     time.Duration
		maxBackoff  time.Duration
		logLevel    string
		logFormat   string
		showVersion bool
		showHelp    bool
	)

	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SortFlags = false
	flagSet.StringVar(&configPath, "config", "", "YAML config file (positional arguments override its endpoint)")
	flagSet.StringVar(&transportID, "transport", string(defaults.Transport), "peer transport: vsock, or tcp to dial 127.0.0.1:<remote-port>")
	flagSet.IntVar(&maxSessions, "max-sessions", defaults.Limits.MaxSessions, "maximum concurrent sessions (0 = unbounded)")
	flagSet.Float64Var(&acceptRate, "accept-rate", defaults.Limits.AcceptRate, "new sessions per second allowed to dial the peer (0 = unlimited)")
	flagSet.IntVar(&acceptBurst, "accept-burst", defaults.Limits.AcceptBurst, "burst size for --accept-rate")
	flagSet.DurationVar(&idleTimeout, "idle-timeout", defaults.Limits.IdleTimeout, "close a session direction idle for this long (0 = never)")
	flagSet.DurationVar(&dialTimeout, "dial-timeout", defaults.Limits.DialTimeout, "bound on each peer dial (0 = none)")
	flagSet.Var(byteSizeFlag{&bufferSize}, "buffer-size", "transfer chunk per direction, e.g. 1KB or 64KB (KB = 1024 bytes)")
	flagSet.DurationVar(&rebind, "rebind-backoff", defaults.Backoff.Rebind, "wait before re-binding a failed listener")
	flagSet.DurationVar(&handoff, "handoff-backoff", defaults.Backoff.Handoff, "wait after a failed accept or unreachable peer")
	flagSet.DurationVar(&maxBackoff, "max-backoff", defaults.Backoff.Max, "let repeated failures double the backoff up to this (0 = fixed delays)")
	flagSet.StringVar(&logLevel, "log-level", defaults.Logging.Level, "debug, info, warn, or error")
	flagSet.StringVar(&logFormat, "log-format", defaults.Logging.Format, "auto, text, or json")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, flagSet)
			return nil, nil
		}
		return nil, &process.UsageError{Message: err.Error() + "\n" + usageLine}
	}
	if showHelp {
		printUsage(stdout, flagSet)
		return nil, nil
	}
	if showVersion {
		version.Fprint(stdout, binaryName)
		return nil, nil
	}

	cfg := defaults
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	positional := flagSet.Args()
	switch {
	case len(positional) == 4:
		if err := applyEndpoint(cfg, positional); err != nil {
			return nil, err
		}
	case len(positional) == 0 && configPath != "":
	default:
		return nil, &process.UsageError{Message: fmt.Sprintf(
			"expected 4 arguments, got %d\n%s", len(positional), usageLine)}
	}

	if flagSet.Changed("transport") {
		cfg.Transport = config.Transport(transportID)
	}
	if flagSet.Changed("max-sessions") {
		cfg.Limits.MaxSessions = maxSessions
	}
	if flagSet.Changed("accept-rate") {
		cfg.Limits.AcceptRate = acceptRate
	}
	if flagSet.Changed("accept-burst") {
		cfg.Limits.AcceptBurst = acceptBurst
	}
	if flagSet.Changed("idle-timeout") {
		cfg.Limits.IdleTimeout = idleTimeout
	}
	if flagSet.Changed("dial-timeout") {
		cfg.Limits.DialTimeout = dialTimeout
	}
	if flagSet.Changed("buffer-size") {
		cfg.Limits.BufferSize = bufferSize
	}
	if flagSet.Changed("rebind-backoff") {
		cfg.Backoff.Rebind = rebind
	}
	if flagSet.Changed("handoff-backoff") {
		cfg.Backoff.Handoff = handoff
	}
	if flagSet.Changed("max-backoff") {
		cfg.Backoff.Max = maxBackoff
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	if flagSet.Changed("log-format") {
		cfg.Logging.Format = strings.ToLower(logFormat)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// applyEndpoint sets listen and remote from the four positional
// arguments.
func applyEndpoint(cfg *config.Config, positional []string) error {
	localPort, err := transport.ParsePort(positional[1])
	if err != nil {
		return fmt.Errorf("local-port: %w", err)
	}
	if _, err := transport.ParseContextID(positional[2]); err != nil {
		return fmt.Errorf("remote-cid: %w", err)
	}
	remotePort, err := transport.ParsePort(positional[3])
	if err != nil {
		return fmt.Errorf("remote-port: %w", err)
	}

	cfg.Listen.Address = positional[0]
	cfg.Listen.Port = int(localPort)
	cfg.Remote.CID = strings.ToLower(strings.TrimSpace(positional[2]))
	cfg.Remote.Port = int(remotePort)
	return nil
}

const usageLine = "usage: vsock-forwarder [flags] <local-address> <local-port> <remote-cid> <remote-port>"

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `vsock-forwarder - Forward TCP connections to a vsock peer

USAGE
    vsock-forwarder [flags] <local-address> <local-port> <remote-cid> <remote-port>
    vsock-forwarder --config <file> [flags] [<local-address> <local-port> <remote-cid> <remote-port>]

ARGUMENTS
    local-address    address to listen on, e.g. 127.0.0.1 or 0.0.0.0
    local-port       TCP port to listen on
    remote-cid       peer context id, or hypervisor, local, host
    remote-port      peer vsock port

FLAGS
%s
EXAMPLES
    # Expose an enclave's port 8443 (cid 16) on localhost
    vsock-forwarder 127.0.0.1 8443 16 8443

    # Develop without a hypervisor against a local TCP service
    vsock-forwarder --transport tcp --log-format text 127.0.0.1 9000 3 8000
`, flagSet.FlagUsages())
}
