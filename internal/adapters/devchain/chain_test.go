package devchain_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/testutil"
)

const deployGas = 500_000

type txOpts struct {
	key     *ecdsa.PrivateKey
	nonce   uint64
	to      *common.Address
	gas     uint64
	price   *big.Int
	data    []byte
	chainID uint64
}

func signed(t *testing.T, o txOpts) *types.Transaction {
	t.Helper()
	if o.key == nil {
		o.key = testutil.Key(0)
	}
	if o.price == nil {
		o.price = new(big.Int)
	}
	if o.chainID == 0 {
		o.chainID = domain.DefaultChainID
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    o.nonce,
		To:       o.to,
		Gas:      o.gas,
		GasPrice: o.price,
		Data:     o.data,
	})
	s, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(o.chainID)), o.key)
	require.NoError(t, err)
	return s
}

func storeCall(t *testing.T, v int64) []byte {
	t.Helper()
	parsed := testutil.StorageArtifact(t).ABI
	data, err := parsed.Pack("store", big.NewInt(v))
	require.NoError(t, err)
	return data
}

func deployStorage(t *testing.T, chain *devchain.Chain, nonce uint64) common.Address {
	t.Helper()
	tx := signed(t, txOpts{nonce: nonce, gas: deployGas, data: hexutil.MustDecode(testutil.StorageCode)})
	require.NoError(t, chain.SendTransaction(context.Background(), tx))
	r, err := chain.TransactionReceipt(context.Background(), tx.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	return r.ContractAddress
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	return rpcErr.ErrorCode()
}

func TestChain_DeployAndCall(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(t)

	addr := deployStorage(t, chain, 0)
	code, err := chain.CodeAt(ctx, addr, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	tx := signed(t, txOpts{nonce: 1, to: &addr, gas: 100_000, data: storeCall(t, 42)})
	require.NoError(t, chain.SendTransaction(ctx, tx))
	r, err := chain.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, common.HexToHash(testutil.NumberChangedTopic), r.Logs[0].Topics[0])
	assert.Equal(t, uint64(2), r.BlockNumber.Uint64())

	parsed := testutil.StorageArtifact(t).ABI
	retrieve, err := parsed.Pack("retrieve")
	require.NoError(t, err)
	out, err := chain.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: retrieve}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), new(big.Int).SetBytes(out).Int64())

	// state at block 1 predates the store
	out, err = chain.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: retrieve}, big.NewInt(1))
	require.NoError(t, err)
	assert.Zero(t, new(big.Int).SetBytes(out).Sign())

	_, err = chain.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: retrieve}, big.NewInt(99))
	assert.ErrorContains(t, err, "header not found")

	balance, err := chain.BalanceAt(ctx, testutil.Address(0), nil)
	require.NoError(t, err)
	assert.Zero(t, testutil.Ether(100).Cmp(balance), "zero gas price must not charge the sender")
}

func TestChain_CallRevertCarriesData(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(t)
	addr := deployStorage(t, chain, 0)

	_, err := chain.CallContract(ctx, ethereum.CallMsg{From: testutil.Address(0), To: &addr, Data: storeCall(t, 0)}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, rpcCode(t, err))
	assert.EqualError(t, err, "execution reverted: zero value")

	var dataErr rpc.DataError
	require.ErrorAs(t, err, &dataErr)
	reason, err := abi.UnpackRevert(hexutil.MustDecode(dataErr.ErrorData().(string)))
	require.NoError(t, err)
	assert.Equal(t, "zero value", reason)
}

func TestChain_MinedRevertHasFailedReceipt(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(t)
	addr := deployStorage(t, chain, 0)

	tx := signed(t, txOpts{nonce: 1, to: &addr, gas: 100_000, data: storeCall(t, 0)})
	require.NoError(t, chain.SendTransaction(ctx, tx))
	r, err := chain.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, r.Status)
	assert.Empty(t, r.Logs)
}

func TestChain_Admission(t *testing.T) {
	tests := []struct {
		name     string
		opts     []devchain.Option
		tx       func(t *testing.T) *types.Transaction
		contains string
	}{
		{
			name: "wrong chain id",
			tx: func(t *testing.T) *types.Transaction {
				return signed(t, txOpts{gas: deployGas, data: hexutil.MustDecode(testutil.StorageCode), chainID: 1})
			},
			contains: "invalid chain id for signer",
		},
		{
			name: "unprotected",
			tx: func(t *testing.T) *types.Transaction {
				tx := types.NewTx(&types.LegacyTx{Gas: deployGas, GasPrice: new(big.Int), Data: hexutil.MustDecode(testutil.StorageCode)})
				s, err := types.SignTx(tx, types.HomesteadSigner{}, testutil.Key(0))
				require.NoError(t, err)
				return s
			},
			contains: "only replay-protected",
		},
		{
			name: "underpriced",
			opts: []devchain.Option{devchain.WithMinGasPrice(big.NewInt(1))},
			tx: func(t *testing.T) *types.Transaction {
				return signed(t, txOpts{gas: deployGas, data: hexutil.MustDecode(testutil.StorageCode)})
			},
			contains: "transaction underpriced",
		},
		{
			name: "intrinsic gas",
			tx: func(t *testing.T) *types.Transaction {
				return signed(t, txOpts{gas: 21_000, data: hexutil.MustDecode(testutil.StorageCode)})
			},
			contains: "intrinsic gas too low",
		},
		{
			name: "block gas limit",
			opts: []devchain.Option{devchain.WithBlockGasLimit(100_000)},
			tx: func(t *testing.T) *types.Transaction {
				return signed(t, txOpts{gas: deployGas, data: hexutil.MustDecode(testutil.StorageCode)})
			},
			contains: "exceeds block gas limit",
		},
		{
			name: "insufficient funds",
			tx: func(t *testing.T) *types.Transaction {
				return signed(t, txOpts{key: testutil.Key(9), gas: deployGas, price: big.NewInt(1), data: hexutil.MustDecode(testutil.StorageCode)})
			},
			contains: "insufficient funds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := testutil.NewChain(t, tt.opts...)
			err := chain.SendTransaction(context.Background(), tt.tx(t))
			require.Error(t, err)
			assert.Equal(t, -32000, rpcCode(t, err))
			assert.ErrorContains(t, err, tt.contains)
			assert.Zero(t, chain.Pending())
		})
	}
}

func TestChain_NonceRules(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(t, devchain.WithAutoMine(false))
	code := hexutil.MustDecode(testutil.StorageCode)

	first := signed(t, txOpts{nonce: 0, gas: deployGas, data: code})
	require.NoError(t, chain.SendTransaction(ctx, first))
	assert.ErrorContains(t, chain.SendTransaction(ctx, first), "already known")

	second := signed(t, txOpts{nonce: 0, gas: deployGas + 1, data: code})
	assert.ErrorContains(t, chain.SendTransaction(ctx, second), "replacement transaction underpriced")

	// a gap is admitted but does not count towards the pending nonce
	gapped := signed(t, txOpts{nonce: 2, gas: deployGas, data: code})
	require.NoError(t, chain.SendTransaction(ctx, gapped))
	pending, err := chain.PendingNonceAt(ctx, testutil.Address(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pending)
	assert.Equal(t, 2, chain.Pending())

	_, err = chain.TransactionReceipt(ctx, first.Hash())
	assert.ErrorIs(t, err, ethereum.NotFound)

	assert.Equal(t, uint64(1), chain.Mine())
	_, err = chain.TransactionReceipt(ctx, first.Hash())
	require.NoError(t, err)
	assert.Equal(t, 1, chain.Pending(), "the gapped transaction waits for nonce 1")

	stale := signed(t, txOpts{nonce: 0, gas: deployGas + 2, data: code})
	assert.ErrorContains(t, chain.SendTransaction(ctx, stale), "nonce too low")

	filler := signed(t, txOpts{nonce: 1, gas: deployGas, data: code})
	require.NoError(t, chain.SendTransaction(ctx, filler))
	chain.Mine()
	assert.Zero(t, chain.Pending())

	_, err = chain.TransactionReceipt(ctx, gapped.Hash())
	require.NoError(t, err)
	block, err := chain.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), block)
}

func TestChain_EVMVersion(t *testing.T) {
	ctx := context.Background()
	push0 := hexutil.MustDecode(testutil.Push0Code)

	london := testutil.NewChain(t)
	tx := signed(t, txOpts{gas: 100_000, data: push0})
	require.NoError(t, london.SendTransaction(ctx, tx))
	r, err := london.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, r.Status, "london has no PUSH0")

	shanghai := testutil.NewChain(t, devchain.WithEVMVersion(domain.EVMShanghai))
	tx = signed(t, txOpts{gas: 100_000, data: push0})
	require.NoError(t, shanghai.SendTransaction(ctx, tx))
	r, err = shanghai.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
}

func TestChain_Options(t *testing.T) {
	ctx := context.Background()

	_, err := devchain.New(devchain.WithEVMVersion("frontier"))
	assert.ErrorContains(t, err, "unsupported evm version")

	chain := testutil.NewChain(t, devchain.WithChainID(31337), devchain.WithSuggestedGasPrice(big.NewInt(7)))
	id, err := chain.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(31337), id.Int64())

	price, err := chain.SuggestGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), price.Int64())

	chain.Fund(testutil.Address(9), testutil.Ether(1))
	balance, err := chain.BalanceAt(ctx, testutil.Address(9), nil)
	require.NoError(t, err)
	assert.Zero(t, testutil.Ether(1).Cmp(balance))
}

func TestRPCError(t *testing.T) {
	var err error = &devchain.RPCError{Code: 3, Message: "execution reverted"}
	var dataErr rpc.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Nil(t, dataErr.ErrorData())
}
