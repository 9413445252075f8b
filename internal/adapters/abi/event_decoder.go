package abi

import (
	"fmt"
	"log/slog"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// DecodedEvent is a receipt log matched against a contract ABI
type DecodedEvent struct {
	Address common.Address
	Name    string
	Params  [][]string
	Topics  []common.Hash
	Data    []byte
}

// Decoded reports whether the log matched an event of the ABI
func (e *DecodedEvent) Decoded() bool {
	return e.Name != ""
}

// EventDecoder decodes events emitted during execution
type EventDecoder struct {
	log *slog.Logger
}

// NewEventDecoder creates a new event decoder
func NewEventDecoder(log *slog.Logger) *EventDecoder {
	return &EventDecoder{
		log: log.With("component", "EventDecoder"),
	}
}

// DecodeLogs decodes every log that contract emitted. Logs that match no
// event are returned undecoded.
func (e *EventDecoder) DecodeLogs(contract *ethabi.ABI, logs []*types.Log) []*DecodedEvent {
	out := make([]*DecodedEvent, 0, len(logs))
	for _, l := range logs {
		if l == nil {
			continue
		}
		decoded, err := e.DecodeLog(contract, l)
		if err != nil {
			e.log.Debug("Unable to decode log", "address", l.Address, "err", err)
		}
		out = append(out, decoded)
	}
	return out
}

// DecodeLog decodes one log against contract
func (e *EventDecoder) DecodeLog(contract *ethabi.ABI, l *types.Log) (*DecodedEvent, error) {
	decoded := &DecodedEvent{Address: l.Address, Topics: l.Topics, Data: l.Data}

	// If there are no topics, we can't decode
	if contract == nil || len(l.Topics) == 0 {
		return decoded, nil
	}

	event, err := contract.EventByID(l.Topics[0])
	if err != nil {
		return decoded, nil
	}

	values := make(map[string]any)

	// First decode indexed parameters from topics
	var indexed ethabi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := ethabi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
			return decoded, fmt.Errorf("failed to parse topics: %w", err)
		}
	}

	// Then decode non-indexed parameters from data
	if nonIndexed := event.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(values, l.Data); err != nil {
			return decoded, fmt.Errorf("failed to unpack event data: %w", err)
		}
	}

	for i, input := range event.Inputs {
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		if val, ok := values[input.Name]; ok {
			decoded.Params = append(decoded.Params, []string{name, usecase.FormatValue(val)})
		}
	}
	decoded.Name = event.RawName
	return decoded, nil
}
