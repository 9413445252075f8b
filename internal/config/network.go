package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// ResolveNetwork builds the NetworkProfile for name. Fields missing from
// the [networks.<name>] section fall back to the private network defaults.
// The default network resolves even without a sling.toml.
func ResolveNetwork(sc *config.SlingConfig, name string) (domain.NetworkProfile, error) {
	profile := domain.DefaultNetworkProfile()

	if name == "" && sc != nil && sc.DefaultNetwork != "" {
		name = sc.DefaultNetwork
	}
	if name == "" {
		name = domain.DefaultNetworkName
	}
	profile.Name = name

	var (
		nc    config.NetworkConfig
		found bool
	)
	if sc != nil {
		nc, found = sc.Networks[name]
	}
	if !found {
		if name != domain.DefaultNetworkName {
			return profile, fmt.Errorf("network '%s' not found in %s (known: %s)", name, SlingFileName, knownNetworks(sc))
		}
		return profile, nil
	}

	if nc.RPCURL != "" {
		profile.RPCURL = nc.RPCURL
	}
	if nc.ChainID != 0 {
		profile.ChainID = nc.ChainID
	}
	if nc.EVMVersion != "" {
		profile.EVMVersion = domain.EVMVersion(strings.ToLower(nc.EVMVersion))
	}
	if nc.MinCodeSize > 0 {
		profile.MinCodeSize = nc.MinCodeSize
	}
	if nc.DeployGasLimit > 0 {
		profile.DeployGasLimit = nc.DeployGasLimit
	}
	if nc.CallGasLimit > 0 {
		profile.CallGasLimit = nc.CallGasLimit
	}

	var err error
	if profile.BlockTime, err = parseDuration(nc.BlockTime, profile.BlockTime); err != nil {
		return profile, fmt.Errorf("network '%s': block_time: %w", name, err)
	}
	if profile.ConfirmTimeout, err = parseDuration(nc.ConfirmTimeout, profile.ConfirmTimeout); err != nil {
		return profile, fmt.Errorf("network '%s': confirm_timeout: %w", name, err)
	}

	if nc.GasPrice != "" {
		if profile.GasPrice, err = ParseWei(nc.GasPrice); err != nil {
			return profile, fmt.Errorf("network '%s': gas_price: %w", name, err)
		}
	}
	switch {
	case nc.FeePolicy != "":
		profile.FeePolicy = domain.FeePolicy(strings.ToLower(nc.FeePolicy))
	case nc.GasPrice != "":
		profile.FeePolicy = domain.FeePolicyFixed
	}

	if err := profile.Validate(); err != nil {
		return profile, err
	}
	return profile, nil
}

// ParseWei accepts a wei amount as a decimal or 0x integer, optionally
// followed by a "wei", "gwei" or "ether" unit.
func ParseWei(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	unit := big.NewInt(1)
	for _, u := range []struct {
		suffix string
		mul    int64
	}{{"gwei", params.GWei}, {"ether", params.Ether}, {"wei", params.Wei}} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			unit = big.NewInt(u.mul)
			break
		}
	}
	v, ok := new(big.Int).SetString(strings.ReplaceAll(s, "_", ""), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v.Mul(v, unit), nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func knownNetworks(sc *config.SlingConfig) string {
	names := []string{domain.DefaultNetworkName}
	if sc != nil {
		names = lo.Uniq(append(names, lo.Keys(sc.Networks)...))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
