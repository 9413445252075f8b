package usecase_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/adapters/blockchain"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/testutil"
	"github.com/trebuchet-org/sling/internal/usecase"
)

var errConnReset = errors.New("read tcp 127.0.0.1:52144->127.0.0.1:8545: read: connection reset by peer")

// faultyClient fails selected calls of an otherwise working chain
type faultyClient struct {
	usecase.ChainClient

	callErr    error
	sendErr    error
	receiptErr error
	// deliver hands the transaction to the chain before sendErr is returned
	deliver bool
	// pending replaces the node's pending nonce when set
	pending *uint64
}

func (f *faultyClient) wrap(c usecase.ChainClient) usecase.ChainClient {
	f.ChainClient = c
	return f
}

func (f *faultyClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.ChainClient.CallContract(ctx, msg, blockNumber)
}

func (f *faultyClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr == nil {
		return f.ChainClient.SendTransaction(ctx, tx)
	}
	if f.deliver {
		if err := f.ChainClient.SendTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return f.sendErr
}

func (f *faultyClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.ChainClient.TransactionReceipt(ctx, hash)
}

func (f *faultyClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if f.pending != nil {
		return *f.pending, nil
	}
	return f.ChainClient.PendingNonceAt(ctx, account)
}

func TestInvokeMethod_CallErrorIsNotARevert(t *testing.T) {
	faults := &faultyClient{}
	h := newHarness(t, withClient(faults.wrap))
	ctx := context.Background()

	target, err := usecase.TargetFromDeployment(h.deployStorage(t).Deployment)
	require.NoError(t, err)

	faults.callErr = &devchain.RPCError{Code: -32602, Message: "invalid argument 0: hex string has odd length"}
	_, err = h.invoke.Run(ctx, usecase.InvokeParams{Target: target, Method: "retrieve"})
	require.Error(t, err)

	var revertErr *domain.RevertError
	assert.False(t, errors.As(err, &revertErr))
	diag := domain.Classify(err)
	assert.Equal(t, domain.TransportFailure, diag.Kind)
	assert.Equal(t, domain.StageInvoke, diag.Stage)
	assert.Contains(t, diag.Message, "odd length")

	// an execution failure without revert data still reads as a revert
	faults.callErr = &devchain.RPCError{Code: 3, Message: "execution reverted: not the owner"}
	_, err = h.invoke.Run(ctx, usecase.InvokeParams{Target: target, Method: "retrieve"})
	require.ErrorAs(t, err, &revertErr)
	assert.Equal(t, "not the owner", revertErr.Reason)
	assert.Equal(t, domain.OnChainRevert, domain.Classify(err).Kind)
}

func TestDeployContract_ReceiptPollingFailureKeepsHash(t *testing.T) {
	faults := &faultyClient{
		receiptErr: &domain.TransportError{Op: "eth_getTransactionReceipt", Attempts: 3, Err: errConnReset},
	}
	h := newHarness(t, withClient(faults.wrap))
	ctx := context.Background()

	res, err := h.deploy.Run(ctx, usecase.DeployParams{
		Artifact: testutil.StorageArtifact(t),
		GasLimit: h.cfg.Network.DeployGasLimit,
		Label:    "Flaky",
	})
	require.Error(t, err)
	require.NotNil(t, res.Signed)
	assert.Nil(t, res.Deployment)

	diag := domain.Classify(err)
	assert.Equal(t, domain.TransportFailure, diag.Kind)
	assert.Equal(t, domain.StageConfirm, diag.Stage)
	require.NotNil(t, diag.TxHash)
	assert.Equal(t, res.Signed.Hash, *diag.TxHash)
	require.NotNil(t, diag.Nonce)
	assert.Equal(t, res.Signed.Nonce, *diag.Nonce)
	require.NotNil(t, diag.From)
	assert.Equal(t, res.Signed.From, *diag.From)
	assert.False(t, diag.Retryable)
	assert.Contains(t, diag.Remedy, "sling tx")

	rec, err := h.repo.GetTransaction(ctx, res.Signed.Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptPending, rec.Status)

	// the endpoint recovers and the hash is picked up again
	faults.receiptErr = nil
	polled, err := h.track.Run(ctx, usecase.TrackParams{Hash: res.Signed.Hash})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptSuccess, polled.Receipt.Status)
	require.NotNil(t, polled.Deployment)
	assert.Equal(t, usecase.DeploymentID(h.cfg.Network.Name, "Storage", "Flaky"), polled.Deployment.ID)
}

func TestSubmitter_HTTPRefusalIsNotARejection(t *testing.T) {
	faults := &faultyClient{
		sendErr: rpc.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"},
	}
	policy := config.RPCConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	h := newHarness(t, withClient(func(c usecase.ChainClient) usecase.ChainClient {
		return blockchain.NewClient(faults.wrap(c), policy, discardLogger())
	}))
	ctx := context.Background()

	utx, err := h.builder.BuildDeployment(ctx, domain.DeploymentRequest{
		Artifact: testutil.StorageArtifact(t),
		GasLimit: h.cfg.Network.DeployGasLimit,
	})
	require.NoError(t, err)

	signed, err := h.submitter.Submit(ctx, utx, h.signer)
	require.Error(t, err)
	require.NotNil(t, signed)

	var subErr *domain.SubmissionError
	assert.False(t, errors.As(err, &subErr))
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 1, transportErr.Attempts)
	assert.Equal(t, signed.Hash, transportErr.TxHash)

	diag := domain.Classify(err)
	assert.Equal(t, domain.TransportFailure, diag.Kind)
	assert.Equal(t, domain.StageSubmit, diag.Stage)
	assert.Empty(t, diag.Reason)
	require.NotNil(t, diag.TxHash)
	assert.Equal(t, signed.Hash, *diag.TxHash)
}

func TestSubmitter_UnknownBroadcastOutcomeTrustsNode(t *testing.T) {
	faults := &faultyClient{}
	h := newHarness(t, withClient(faults.wrap), withChain(devchain.WithAutoMine(false)))
	ctx := context.Background()
	from := h.signer.Address()

	utx, err := h.builder.BuildDeployment(ctx, domain.DeploymentRequest{
		Artifact: testutil.StorageArtifact(t),
		GasLimit: h.cfg.Network.DeployGasLimit,
	})
	require.NoError(t, err)

	first, err := h.submitter.Submit(ctx, utx, h.signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Nonce)

	// the node takes the transaction but the answer is lost
	faults.sendErr = errConnReset
	faults.deliver = true
	second, err := h.submitter.Submit(ctx, utx, h.signer)
	require.Error(t, err)
	require.NotNil(t, second)
	assert.Equal(t, uint64(1), second.Nonce)
	assert.Equal(t, 2, h.chain.Pending())

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, second.Hash, transportErr.TxHash)
	assert.Equal(t, domain.TransportFailure, domain.Classify(err).Kind)

	// the node restarted with an empty pool; the next nonce comes from it
	// and not from the local cursor
	zero := uint64(0)
	faults.pending = &zero
	lease, err := h.nonces.Reserve(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lease.Nonce)
	lease.Release()

	faults.pending = nil
	faults.sendErr = nil
	third, err := h.submitter.Submit(ctx, utx, h.signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third.Nonce)
}
