package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/testutil"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// MockNonceSource answers PendingNonceAt; the rest of ChainClient is unused
type MockNonceSource struct {
	usecase.ChainClient
	mock.Mock
}

func (m *MockNonceSource) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func TestNonceAllocator_CommitAdvancesPastNode(t *testing.T) {
	ctx := context.Background()
	addr := testutil.Address(0)
	client := new(MockNonceSource)
	client.On("PendingNonceAt", mock.Anything, addr).Return(uint64(4), nil)

	nonces := usecase.NewNonceAllocator(client, discardLogger())

	lease, err := nonces.Reserve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), lease.Nonce)
	lease.Commit()

	// the node has not seen the first transaction yet
	lease, err = nonces.Reserve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), lease.Nonce)
	lease.Release()

	lease, err = nonces.Reserve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), lease.Nonce, "release must not consume the nonce")
	lease.Discard()

	lease, err = nonces.Reserve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), lease.Nonce, "discard falls back to the node")
	lease.Release()
}

func TestNonceAllocator_ReserveWaitsForSlot(t *testing.T) {
	ctx := context.Background()
	addr := testutil.Address(0)
	client := new(MockNonceSource)
	client.On("PendingNonceAt", mock.Anything, addr).Return(uint64(0), nil)

	nonces := usecase.NewNonceAllocator(client, discardLogger())
	first, err := nonces.Reserve(ctx, addr)
	require.NoError(t, err)

	got := make(chan uint64, 1)
	go func() {
		lease, err := nonces.Reserve(ctx, addr)
		if err != nil {
			close(got)
			return
		}
		got <- lease.Nonce
		lease.Release()
	}()

	select {
	case <-got:
		t.Fatal("second reservation did not wait for the first lease")
	case <-time.After(50 * time.Millisecond):
	}

	first.Commit()
	select {
	case n, ok := <-got:
		require.True(t, ok)
		assert.Equal(t, uint64(1), n)
	case <-time.After(time.Second):
		t.Fatal("second reservation never acquired the slot")
	}
}

func TestNonceAllocator_ReserveHonorsContext(t *testing.T) {
	addr := testutil.Address(0)
	client := new(MockNonceSource)
	client.On("PendingNonceAt", mock.Anything, addr).Return(uint64(0), nil)

	nonces := usecase.NewNonceAllocator(client, discardLogger())
	lease, err := nonces.Reserve(context.Background(), addr)
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = nonces.Reserve(ctx, addr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNonceAllocator_SignersAreIndependent(t *testing.T) {
	ctx := context.Background()
	client := new(MockNonceSource)
	client.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(2), nil)

	nonces := usecase.NewNonceAllocator(client, discardLogger())
	a, err := nonces.Reserve(ctx, testutil.Address(0))
	require.NoError(t, err)
	b, err := nonces.Reserve(ctx, testutil.Address(1))
	require.NoError(t, err)

	assert.Equal(t, a.Nonce, b.Nonce)
	a.Release()
	b.Release()
}

func TestNonceAllocator_NodeErrorFreesSlot(t *testing.T) {
	ctx := context.Background()
	addr := testutil.Address(0)
	client := new(MockNonceSource)
	client.On("PendingNonceAt", mock.Anything, addr).Return(uint64(0), errors.New("connection refused")).Once()
	client.On("PendingNonceAt", mock.Anything, addr).Return(uint64(9), nil)

	nonces := usecase.NewNonceAllocator(client, discardLogger())
	_, err := nonces.Reserve(ctx, addr)
	assert.ErrorContains(t, err, "fetch pending nonce")

	lease, err := nonces.Reserve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), lease.Nonce)
	lease.Commit()
	lease.Commit()
	client.AssertNumberOfCalls(t, "PendingNonceAt", 2)
}
