package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceAllocator serializes nonce assignment per signer. A lease holds the
// signer's slot from reservation until the broadcast outcome is known, so two
// concurrent submissions can never observe the same nonce.
type NonceAllocator struct {
	client ChainClient
	log    *slog.Logger

	mu       sync.Mutex
	accounts map[common.Address]*accountNonce
}

type accountNonce struct {
	slot  chan struct{}
	next  uint64
	known bool
}

// NonceLease is an exclusive claim on the next nonce of one signer. Exactly
// one of Commit, Release or Discard must be called.
type NonceLease struct {
	Nonce   uint64
	Address common.Address

	acct *accountNonce
	once sync.Once
}

// NewNonceAllocator creates a new NonceAllocator
func NewNonceAllocator(client ChainClient, log *slog.Logger) *NonceAllocator {
	return &NonceAllocator{
		client:   client,
		log:      log.With("component", "nonce"),
		accounts: make(map[common.Address]*accountNonce),
	}
}

func (a *NonceAllocator) account(addr common.Address) *accountNonce {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[addr]
	if !ok {
		acct = &accountNonce{slot: make(chan struct{}, 1)}
		a.accounts[addr] = acct
	}
	return acct
}

// Reserve waits for the signer's slot and returns the next nonce: the larger
// of the node's pending count and the locally committed cursor.
func (a *NonceAllocator) Reserve(ctx context.Context, addr common.Address) (*NonceLease, error) {
	acct := a.account(addr)

	select {
	case acct.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pending, err := a.client.PendingNonceAt(ctx, addr)
	if err != nil {
		<-acct.slot
		return nil, fmt.Errorf("fetch pending nonce: %w", err)
	}

	nonce := pending
	if acct.known && acct.next > nonce {
		nonce = acct.next
	}
	a.log.Debug("reserved nonce", "address", addr.Hex(), "nonce", nonce, "pending", pending)

	return &NonceLease{Nonce: nonce, Address: addr, acct: acct}, nil
}

// Commit records that a transaction with this nonce was accepted.
func (l *NonceLease) Commit() {
	l.once.Do(func() {
		l.acct.next = l.Nonce + 1
		l.acct.known = true
		<-l.acct.slot
	})
}

// Release frees the slot without consuming the nonce.
func (l *NonceLease) Release() {
	l.once.Do(func() {
		<-l.acct.slot
	})
}

// Discard frees the slot and forgets the local cursor, so the next
// reservation trusts the node. Used after a nonce-too-low rejection.
func (l *NonceLease) Discard() {
	l.once.Do(func() {
		l.acct.known = false
		l.acct.next = 0
		<-l.acct.slot
	})
}
