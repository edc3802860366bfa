// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Transport selects how the forwarder reaches the peer.
type Transport string

const (
	// Vsock dials the peer over AF_VSOCK.
	Vsock Transport = "vsock"
	// TCP dials remote.host:remote.port instead, for hosts without a
	// hypervisor channel.
	TCP Transport = "tcp"
)

// Log formats accepted by logging.format.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete forwarder configuration.
type Config struct {
	// Listen is the local TCP endpoint.
	Listen ListenConfig `yaml:"listen"`

	// Remote is the fixed peer.
	Remote RemoteConfig `yaml:"remote"`

	// Transport is "vsock" (default) or "tcp".
	Transport Transport `yaml:"transport"`

	Limits  LimitsConfig  `yaml:"limits"`
	Backoff BackoffConfig `yaml:"backoff"`
	Logging LoggingConfig `yaml:"logging"`
}

// ListenConfig configures the listening socket.
type ListenConfig struct {
	// Address is the host or IP to bind. Empty binds all interfaces.
	Address string `yaml:"address"`

	// Port is the TCP port to bind.
	Port int `yaml:"port"`
}

// RemoteConfig names the peer every session is forwarded to.
type RemoteConfig struct {
	// CID is a context id number or one of hypervisor, local, host.
	CID string `yaml:"cid"`

	// Port is the peer port.
	Port int `yaml:"port"`

	// Host is dialed by the tcp transport. Default: 127.0.0.1
	Host string `yaml:"host"`
}

// LimitsConfig bounds resource use. Zero values mean unbounded.
type LimitsConfig struct {
	MaxSessions int               `yaml:"max_sessions"`
	AcceptRate  float64           `yaml:"accept_rate"`
	AcceptBurst int               `yaml:"accept_burst"`
	IdleTimeout time.Duration     `yaml:"idle_timeout"`
	DialTimeout time.Duration     `yaml:"dial_timeout"`
	BufferSize  datasize.ByteSize `yaml:"buffer_size"`
}

// BackoffConfig sets the retry delays.
type BackoffConfig struct {
	Rebind  time.Duration `yaml:"rebind"`
	Handoff time.Duration `yaml:"handoff"`

	// Max enables exponential growth up to this delay when larger than
	// the base delays.
	Max time.Duration `yaml:"max"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text on a terminal.
	Format string `yaml:"format"`
}

// Default returns the configuration matching the forwarder's original
// fixed behaviour. The endpoint fields are left empty; they come from
// the file or the command line.
func Default() *Config {
	return &Config{
		Transport: Vsock,
		Remote: RemoteConfig{
			Host: "127.0.0.1",
		},
		Limits: LimitsConfig{
			BufferSize: 1 * datasize.KB,
		},
		Backoff: BackoffConfig{
			Rebind:  5 * time.Second,
			Handoff: 1 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// LoadFile reads path over [Default] and expands variables. The result
// is not validated; call [Config.Validate] after applying overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Listen.Address = expandVars(c.Listen.Address)
	c.Remote.Host = expandVars(c.Remote.Host)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range 0-65535", c.Listen.Port))
	}
	if c.Remote.CID == "" {
		errs = append(errs, fmt.Errorf("remote.cid is required"))
	} else if !validContextID(c.Remote.CID) {
		errs = append(errs, fmt.Errorf("remote.cid %q is not a number or one of hypervisor, local, host", c.Remote.CID))
	}
	if c.Remote.Port < 0 || c.Remote.Port > 65535 {
		errs = append(errs, fmt.Errorf("remote.port %d out of range 0-65535", c.Remote.Port))
	}

	if c.Transport != Vsock && c.Transport != TCP {
		errs = append(errs, fmt.Errorf("transport must be %q or %q, got %q", Vsock, TCP, c.Transport))
	}

	if c.Limits.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("limits.max_sessions must not be negative"))
	}
	if c.Limits.AcceptRate < 0 {
		errs = append(errs, fmt.Errorf("limits.accept_rate must not be negative"))
	}
	if c.Limits.AcceptBurst < 0 {
		errs = append(errs, fmt.Errorf("limits.accept_burst must not be negative"))
	}
	if c.Limits.IdleTimeout < 0 || c.Limits.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("limits timeouts must not be negative"))
	}
	if c.Limits.BufferSize == 0 || c.Limits.BufferSize > 16*datasize.MB {
		errs = append(errs, fmt.Errorf("limits.buffer_size must be between 1B and 16MB, got %s", c.Limits.BufferSize.HR()))
	}

	if c.Backoff.Rebind < 0 || c.Backoff.Handoff < 0 || c.Backoff.Max < 0 {
		errs = append(errs, fmt.Errorf("backoff delays must not be negative"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}
	formats := []string{FormatAuto, FormatText, FormatJSON}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

func validContextID(value string) bool {
	switch value {
	case "hypervisor", "local", "host":
		return true
	}
	_, err := strconv.ParseUint(value, 10, 32)
	return err == nil
}
