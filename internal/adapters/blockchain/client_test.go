package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/testutil"
	"github.com/trebuchet-org/sling/internal/usecase"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")

// flakyClient fails the first `failures` calls of ChainID and SendTransaction
type flakyClient struct {
	usecase.ChainClient
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyClient) ChainID(ctx context.Context) (*big.Int, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.ChainClient.ChainID(ctx)
}

func (f *flakyClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return f.ChainClient.SendTransaction(ctx, tx)
}

func testPolicy(attempts int) config.RPCConfig {
	return config.RPCConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		RequestTimeout:  time.Second,
	}
}

func newTestClient(inner usecase.ChainClient, attempts int) *Client {
	return NewClient(inner, testPolicy(attempts), slog.New(slog.DiscardHandler))
}

func TestClient_RetriesTransportFaults(t *testing.T) {
	fake := &flakyClient{ChainClient: testutil.NewChain(t), failures: 2, err: errConnRefused}
	client := newTestClient(fake, 4)

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), id.Uint64())
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	fake := &flakyClient{ChainClient: testutil.NewChain(t), failures: 100, err: errConnRefused}
	client := newTestClient(fake, 3)

	_, err := client.ChainID(context.Background())
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 3, transportErr.Attempts)
	assert.Equal(t, "eth_chainId", transportErr.Op)
	assert.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, int32(3), fake.calls.Load())
	assert.Equal(t, domain.TransportFailure, domain.Classify(err).Kind)
}

func TestClient_NodeAnswersAreNotRetried(t *testing.T) {
	chain := testutil.NewChain(t)
	client := newTestClient(chain, 4)

	t.Run("rejection", func(t *testing.T) {
		// unsigned legacy transactions are refused by the node
		tx := types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: new(big.Int)})
		err := client.SendTransaction(context.Background(), tx)
		require.Error(t, err)

		var transportErr *domain.TransportError
		assert.False(t, errors.As(err, &transportErr))
		assert.Equal(t, domain.RejectUnprotected, domain.ParseRejectReason(err.Error()))
	})

	t.Run("pending receipt", func(t *testing.T) {
		_, err := client.TransactionReceipt(context.Background(), common.HexToHash("0x01"))
		assert.ErrorIs(t, err, ethereum.NotFound)
	})

	t.Run("rpc error is counted once", func(t *testing.T) {
		fake := &flakyClient{ChainClient: chain, failures: 1, err: &devchain.RPCError{Code: -32000, Message: "nonce too low"}}
		_, err := newTestClient(fake, 4).ChainID(context.Background())
		require.Error(t, err)
		assert.Equal(t, int32(1), fake.calls.Load())
	})
}

func TestClient_HTTPRefusalIsTransportFailure(t *testing.T) {
	unauthorized := rpc.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized", Body: []byte("missing api key")}
	fake := &flakyClient{ChainClient: testutil.NewChain(t), failures: 100, err: unauthorized}
	client := newTestClient(fake, 4)

	tx := types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: new(big.Int)})
	err := client.SendTransaction(context.Background(), tx)
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "eth_sendRawTransaction", transportErr.Op)
	assert.Equal(t, 1, transportErr.Attempts)
	assert.Equal(t, int32(1), fake.calls.Load())

	var httpErr rpc.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, domain.TransportFailure, domain.Classify(err).Kind)
}

func TestClient_CancelledContext(t *testing.T) {
	fake := &flakyClient{ChainClient: testutil.NewChain(t), failures: 100, err: errConnRefused}
	client := newTestClient(fake, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ChainID(ctx)
	require.Error(t, err)
	assert.LessOrEqual(t, fake.calls.Load(), int32(1))
}

func TestDial_HTTPStatusRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x539"}`, req.ID)
	}))
	defer srv.Close()

	client, err := Dial(context.Background(), srv.URL, testPolicy(3), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), id.Uint64())
	assert.Equal(t, int32(2), hits.Load())
}
