package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/trebuchet-org/sling/internal/domain/config"
)

// Environment variables consulted for a signing key when no [signers]
// entry matches. DEV_PRIVATE_KEYS may hold a comma separated list; the
// first key is used.
const (
	EnvPrivateKey    = "SLING_PRIVATE_KEY"
	EnvDevPrivateKey = "DEV_PRIVATE_KEYS"
)

// ResolveSigner returns the name and key of the session signer. An empty
// key is not an error: read-only commands run without one.
func ResolveSigner(sc *config.SlingConfig, name string) (string, string, error) {
	if name == "" && sc != nil {
		name = sc.DefaultSigner
	}

	if name != "" {
		if sc == nil {
			return "", "", fmt.Errorf("signer '%s' requested but no %s found", name, SlingFileName)
		}
		signer, ok := sc.Signers[name]
		if !ok {
			return "", "", fmt.Errorf("signer '%s' not found in %s", name, SlingFileName)
		}
		key := strings.TrimSpace(signer.PrivateKey)
		if key == "" {
			return "", "", fmt.Errorf("signer '%s' has an empty private_key (is the referenced variable set?)", name)
		}
		return name, key, nil
	}

	if key := strings.TrimSpace(os.Getenv(EnvPrivateKey)); key != "" {
		return "env", key, nil
	}
	if keys := os.Getenv(EnvDevPrivateKey); keys != "" {
		first, _, _ := strings.Cut(keys, ",")
		if key := strings.TrimSpace(first); key != "" {
			return "dev", key, nil
		}
	}
	return "", "", nil
}
