package usecase

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
)

const revertedPrefix = "execution reverted"

// revertFromCall turns an eth_call failure into a RevertError when the node
// executed the call and it failed. Transport faults are left alone.
func revertFromCall(decoder RevertDecoder, contract *abi.ABI, method string, err error) (*domain.RevertError, bool) {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return nil, false
	}

	if data, ok := decoder.RevertData(err); ok {
		return &domain.RevertError{
			Method: method,
			Reason: decoder.DecodeRevert(contract, data),
			Data:   data,
			Err:    err,
		}, true
	}

	// other node answers (bad params, missing state) are not executions
	reason := err.Error()
	idx := strings.Index(reason, revertedPrefix)
	if idx < 0 {
		return nil, false
	}
	reason = strings.TrimSpace(strings.TrimPrefix(reason[idx+len(revertedPrefix):], ":"))
	return &domain.RevertError{Method: method, Reason: reason, Err: err}, true
}

// callFailure wraps an eth_call error that was not a revert so it reports
// as a node failure rather than a contract one.
func callFailure(err error) error {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &domain.TransportError{Op: "eth_call", Attempts: 1, Err: err}
}

// replayRevertReason re-executes a mined, failed transaction as a call on the
// parent block to recover the revert reason. Best effort: an empty string
// means the node gave nothing away.
func replayRevertReason(ctx context.Context, client ChainClient, decoder RevertDecoder, contract *abi.ABI, from common.Address, utx *domain.UnsignedTransaction, receipt *domain.Receipt) (string, []byte) {
	var block *big.Int
	if receipt != nil && receipt.BlockNumber > 0 {
		block = new(big.Int).SetUint64(receipt.BlockNumber - 1)
	}
	_, err := client.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    utx.To,
		Gas:   utx.GasLimit,
		Value: utx.Value,
		Data:  utx.Data,
	}, block)
	if err == nil {
		return "", nil
	}
	if rev, ok := revertFromCall(decoder, contract, "", err); ok {
		return rev.Reason, rev.Data
	}
	return "", nil
}
