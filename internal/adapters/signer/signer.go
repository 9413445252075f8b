// Package signer holds the in-memory ECDSA credential transactions are
// signed with. Keys never leave the process.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// ErrInvalidKey is returned when a configured key cannot be parsed
var ErrInvalidKey = errors.New("invalid private key")

// LocalSigner signs legacy transactions with EIP-155 replay protection
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner wraps an existing key
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// ParseLocalSigner parses a hex key. A comma separated list, as found in
// DEV_PRIVATE_KEYS, selects the first entry.
func ParseLocalSigner(raw string) (*LocalSigner, error) {
	first, _, _ := strings.Cut(raw, ",")
	hexKey := strings.TrimPrefix(strings.TrimSpace(first), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the underlying message never echoes the key
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewLocalSigner(key), nil
}

// Address returns the account the key controls
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID. The chain id always comes from the network
// profile, never from the node.
func (s *LocalSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if chainID == nil || chainID.Sign() == 0 {
		return nil, fmt.Errorf("refusing to sign without a chain id")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// String never prints key material
func (s *LocalSigner) String() string {
	return "LocalSigner(" + s.address.Hex() + ")"
}

// ProvideSigner builds the session signer from the resolved configuration.
// Read-only commands work without a key, so a missing key yields a nil
// Signer rather than an error.
func ProvideSigner(cfg *config.RuntimeConfig) (usecase.Signer, error) {
	if strings.TrimSpace(cfg.SignerKey) == "" {
		return nil, nil
	}
	s, err := ParseLocalSigner(cfg.SignerKey)
	if err != nil {
		if cfg.SignerName != "" {
			return nil, fmt.Errorf("signer %q: %w", cfg.SignerName, err)
		}
		return nil, err
	}
	return s, nil
}

var _ usecase.Signer = (*LocalSigner)(nil)
