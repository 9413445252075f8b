package devchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/trebuchet-org/sling/internal/domain"
)

// chainConfig activates every fork up to and including evm. Forks after
// london are time based and only take effect post-merge, so those versions
// also switch the chain to proof-of-stake rules.
func chainConfig(chainID *big.Int, evm domain.EVMVersion) (*params.ChainConfig, bool, error) {
	rank := evm.Rank()
	if rank < 0 {
		return nil, false, fmt.Errorf("unsupported evm version %q", evm)
	}
	at := func(v domain.EVMVersion) *big.Int {
		if rank >= v.Rank() {
			return new(big.Int)
		}
		return nil
	}
	atTime := func(v domain.EVMVersion) *uint64 {
		if rank >= v.Rank() {
			zero := uint64(0)
			return &zero
		}
		return nil
	}

	cfg := &params.ChainConfig{
		ChainID:             new(big.Int).Set(chainID),
		HomesteadBlock:      new(big.Int),
		EIP150Block:         new(big.Int),
		EIP155Block:         new(big.Int),
		EIP158Block:         new(big.Int),
		ByzantiumBlock:      new(big.Int),
		ConstantinopleBlock: new(big.Int),
		PetersburgBlock:     new(big.Int),
		IstanbulBlock:       new(big.Int),
		MuirGlacierBlock:    new(big.Int),
		BerlinBlock:         at(domain.EVMBerlin),
		LondonBlock:         at(domain.EVMLondon),
		ArrowGlacierBlock:   at(domain.EVMLondon),
		GrayGlacierBlock:    at(domain.EVMLondon),
		ShanghaiTime:        atTime(domain.EVMShanghai),
		CancunTime:          atTime(domain.EVMCancun),
		PragueTime:          atTime(domain.EVMPrague),
	}

	merged := rank >= domain.EVMParis.Rank()
	if merged {
		cfg.TerminalTotalDifficulty = new(big.Int)
		cfg.MergeNetsplitBlock = new(big.Int)
	}
	return cfg, merged, nil
}
