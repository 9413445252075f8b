package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EVMVersion names an EVM hardfork target as understood by solc.
type EVMVersion string

const (
	EVMIstanbul EVMVersion = "istanbul"
	EVMBerlin   EVMVersion = "berlin"
	EVMLondon   EVMVersion = "london"
	EVMParis    EVMVersion = "paris"
	EVMShanghai EVMVersion = "shanghai"
	EVMCancun   EVMVersion = "cancun"
	EVMPrague   EVMVersion = "prague"
)

var evmVersionOrder = []EVMVersion{
	EVMIstanbul,
	EVMBerlin,
	EVMLondon,
	EVMParis,
	EVMShanghai,
	EVMCancun,
	EVMPrague,
}

// ParseEVMVersion normalizes a hardfork name. The empty string maps to london.
func ParseEVMVersion(s string) (EVMVersion, error) {
	if s == "" {
		return EVMLondon, nil
	}
	v := EVMVersion(strings.ToLower(strings.TrimSpace(s)))
	if v == "merge" {
		v = EVMParis
	}
	for _, known := range evmVersionOrder {
		if known == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported evm version %q", s)
}

// Rank orders versions chronologically; unknown versions rank -1.
func (v EVMVersion) Rank() int {
	for i, known := range evmVersionOrder {
		if known == v {
			return i
		}
	}
	return -1
}

// NewerThan reports whether v targets a later hardfork than other.
func (v EVMVersion) NewerThan(other EVMVersion) bool {
	return v.Rank() > other.Rank()
}

// CompiledArtifact is the output of compiling (or loading) a single contract.
// It is treated as immutable once constructed.
type CompiledArtifact struct {
	ContractName    string
	SourceName      string
	Bytecode        []byte
	ABI             abi.ABI
	RawABI          []byte
	Warnings        []string
	EVMVersion      EVMVersion
	CompilerVersion string
}

// HasConstructorInputs reports whether deployment needs encoded arguments.
func (a *CompiledArtifact) HasConstructorInputs() bool {
	return len(a.ABI.Constructor.Inputs) > 0
}
