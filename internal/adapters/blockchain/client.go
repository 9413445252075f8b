// Package blockchain connects the pipeline to a JSON-RPC node.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// Client adds bounded retries on transport faults to a ChainClient. Answers
// from the node, including refusals, are returned untouched on first sight.
type Client struct {
	inner  usecase.ChainClient
	policy config.RPCConfig
	log    *slog.Logger
}

// NewClient wraps inner with the retry policy
func NewClient(inner usecase.ChainClient, policy config.RPCConfig, log *slog.Logger) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{
		inner:  inner,
		policy: policy,
		log:    log.With("component", "RPCClient"),
	}
}

// Dial connects to url. The connection is lazy for HTTP endpoints, so a
// dead node surfaces on the first request, not here.
func Dial(ctx context.Context, url string, policy config.RPCConfig, log *slog.Logger) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, &domain.TransportError{Op: "dial", Attempts: 1, Err: fmt.Errorf("failed to connect to RPC %s: %w", url, err)}
	}
	return NewClient(ethclient.NewClient(rc), policy, log), nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, "eth_chainId", func(ctx context.Context) (*big.Int, error) {
		return c.inner.ChainID(ctx)
	})
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, "eth_blockNumber", func(ctx context.Context) (uint64, error) {
		return c.inner.BlockNumber(ctx)
	})
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.inner.BalanceAt(ctx, account, blockNumber)
	})
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.inner.PendingNonceAt(ctx, account)
	})
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, "eth_gasPrice", func(ctx context.Context) (*big.Int, error) {
		return c.inner.SuggestGasPrice(ctx)
	})
}

func (c *Client) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, "eth_getCode", func(ctx context.Context) ([]byte, error) {
		return c.inner.CodeAt(ctx, contract, blockNumber)
	})
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.inner.CallContract(ctx, msg, blockNumber)
	})
}

// SendTransaction resends the same signed bytes on a transport fault. A
// node that already took the first copy answers "already known".
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(ctx, c, "eth_sendRawTransaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.inner.SendTransaction(ctx, tx)
	})
	return err
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.inner.TransactionReceipt(ctx, txHash)
	})
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.policy.InitialInterval > 0 {
		b.InitialInterval = c.policy.InitialInterval
	}
	if c.policy.MaxInterval > 0 {
		b.MaxInterval = c.policy.MaxInterval
	}
	// the attempt count bounds the retries, not the wall clock
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.policy.MaxAttempts-1)), ctx)
}

func call[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result   T
		attempts int
	)
	operation := func() error {
		attempts++
		attemptCtx, cancel := c.attemptContext(ctx)
		defer cancel()

		r, err := fn(attemptCtx)
		if err == nil {
			result = r
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.log.Warn("RPC request failed, retrying", "op", op, "attempt", attempts, "max_attempts", c.policy.MaxAttempts, "retry_in", next, "err", err)
	}

	err := backoff.RetryNotify(operation, c.backoff(ctx), notify)
	if err == nil {
		if attempts > 1 {
			c.log.Info("RPC request succeeded after retry", "op", op, "attempts", attempts)
		}
		return result, nil
	}
	if ctx.Err() != nil || nodeAnswer(err) {
		return result, err
	}
	return result, &domain.TransportError{Op: op, Attempts: attempts, Err: err}
}

func (c *Client) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.policy.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.policy.RequestTimeout)
}

// retryable reports whether err is a transport fault. JSON-RPC errors are
// the node's answer; NotFound means pending; a done parent context means
// the caller gave up.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || nodeAnswer(err) {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// nodeAnswer reports whether err is a reply from the node itself. Everything
// else, a refused HTTP status included, is a transport failure.
func nodeAnswer(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

var _ usecase.ChainClient = (*Client)(nil)
