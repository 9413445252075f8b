package config

import (
	"time"

	"github.com/trebuchet-org/sling/internal/domain"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Network profile used for every transaction of this session
	Network domain.NetworkProfile

	// Signer credential; the key is never logged or persisted
	SignerName string
	SignerKey  string

	Compiler CompilerConfig
	RPC      RPCConfig

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool
	Timeout        time.Duration

	// DryRun swaps the RPC endpoint for an in-process chain
	DryRun bool

	// Resolved configuration file, nil when no sling.toml exists
	SlingConfig  *SlingConfig
	ConfigSource string
}

// CompilerConfig selects and tunes the solc binary.
type CompilerConfig struct {
	Path       string
	EVMVersion domain.EVMVersion
	Optimizer  bool
	Runs       int
	Timeout    time.Duration
}

// RPCConfig bounds the transport retry policy.
type RPCConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RequestTimeout  time.Duration
}

// DefaultCompilerConfig mirrors the settings of the reference deploy scripts.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Path:       "solc",
		EVMVersion: domain.EVMLondon,
		Optimizer:  true,
		Runs:       200,
		Timeout:    2 * time.Minute,
	}
}

// DefaultRPCConfig returns the transport retry defaults.
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		MaxAttempts:     4,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     4 * time.Second,
		RequestTimeout:  30 * time.Second,
	}
}
