package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// SlingFileName is the project configuration file looked up from the
// working directory upwards.
const SlingFileName = "sling.toml"

// loadDotEnv loads .env and .env.local from the project root. Variables
// already present in the process environment win.
func loadDotEnv(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// loadSlingConfig loads and parses sling.toml if it exists.
// Returns (nil, "", nil) when sling.toml does not exist.
func loadSlingConfig(projectRoot string) (*config.SlingConfig, string, error) {
	path := filepath.Join(projectRoot, SlingFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "", nil
	}

	var cfg config.SlingConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", SlingFileName, err)
	}

	expandSlingConfig(&cfg)
	return &cfg, path, nil
}

// expandSlingConfig expands ${VAR} references in string fields that
// commonly hold secrets or endpoints.
func expandSlingConfig(cfg *config.SlingConfig) {
	cfg.DefaultNetwork = os.ExpandEnv(cfg.DefaultNetwork)
	cfg.DefaultSigner = os.ExpandEnv(cfg.DefaultSigner)

	for name, network := range cfg.Networks {
		network.RPCURL = os.ExpandEnv(network.RPCURL)
		network.GasPrice = os.ExpandEnv(network.GasPrice)
		cfg.Networks[name] = network
	}
	for name, signer := range cfg.Signers {
		signer.PrivateKey = os.ExpandEnv(signer.PrivateKey)
		cfg.Signers[name] = signer
	}
	if cfg.Compiler != nil {
		cfg.Compiler.Solc = os.ExpandEnv(cfg.Compiler.Solc)
	}
}
