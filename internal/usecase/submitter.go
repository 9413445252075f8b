package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

const (
	minPollInterval     = 10 * time.Millisecond
	defaultPollInterval = time.Second
)

// Submitter signs, broadcasts and watches transactions. It never cancels or
// replaces a broadcast transaction and never retries on its own: calling
// Submit again with the same UnsignedTransaction is the explicit re-entry
// point and always takes a fresh nonce.
type Submitter struct {
	client  ChainClient
	nonces  *NonceAllocator
	profile domain.NetworkProfile
	log     *slog.Logger
}

// NewSubmitter creates a new Submitter
func NewSubmitter(client ChainClient, nonces *NonceAllocator, cfg *config.RuntimeConfig, log *slog.Logger) *Submitter {
	return &Submitter{
		client:  client,
		nonces:  nonces,
		profile: cfg.Network,
		log:     log.With("component", "submitter"),
	}
}

// Submit reserves a nonce, signs locally and broadcasts. The nonce advances
// only when the node accepts the transaction. Only a JSON-RPC error answer
// counts as a rejection. Any other broadcast failure leaves the outcome
// unknown: the signed transaction is returned with a TransportError that
// carries its hash, and the nonce cursor is dropped.
func (s *Submitter) Submit(ctx context.Context, utx *domain.UnsignedTransaction, signer Signer) (*domain.SignedTransaction, error) {
	if signer == nil {
		return nil, domain.AtStage(domain.StageSign, "", domain.ErrNoSigner)
	}
	if utx.ChainID != s.profile.ChainID {
		return nil, domain.AtStage(domain.StageBuild, "", fmt.Errorf("%w: transaction built for chain %d, profile expects %d",
			domain.ErrChainIDMismatch, utx.ChainID, s.profile.ChainID))
	}
	if utx.GasLimit == 0 {
		return nil, domain.AtStage(domain.StageBuild, "", fmt.Errorf("%w: gas limit must be greater than zero", domain.ErrInvalidRequest))
	}

	from := signer.Address()
	lease, err := s.nonces.Reserve(ctx, from)
	if err != nil {
		return nil, domain.AtStage(domain.StageSubmit, "", err)
	}

	signed, err := signer.SignTx(utx.WithNonce(lease.Nonce), s.profile.ChainIDBig())
	if err != nil {
		lease.Release()
		return nil, domain.AtStage(domain.StageSign, "", fmt.Errorf("sign transaction: %w", err))
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		lease.Release()
		return nil, domain.AtStage(domain.StageSign, "", fmt.Errorf("encode transaction: %w", err))
	}

	result := &domain.SignedTransaction{
		Hash:    signed.Hash(),
		Raw:     raw,
		Nonce:   lease.Nonce,
		ChainID: utx.ChainID,
		From:    from,
		Tx:      signed,
	}

	s.log.Debug("broadcasting transaction",
		"hash", result.Hash.Hex(),
		"from", from.Hex(),
		"nonce", result.Nonce,
		"kind", utx.Kind,
		"gasLimit", utx.GasLimit,
		"gasPrice", utx.GasPrice)

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		var rpcErr rpc.Error
		if !errors.As(err, &rpcErr) || ctx.Err() != nil {
			// the node may hold the transaction; let the next reservation ask it
			lease.Discard()
			s.log.Warn("broadcast outcome unknown", "hash", result.Hash.Hex(), "nonce", result.Nonce, "error", err)
			return result, domain.AtStage(domain.StageSubmit, "", unknownOutcome("eth_sendRawTransaction", result.Hash, TxContextOf(utx, result), err))
		}

		reason := domain.ParseRejectReason(err.Error())
		if reason == domain.RejectAlreadyKnown {
			// identical bytes are already in the pool
			lease.Commit()
			return result, nil
		}
		if reason == domain.RejectNonceTooLow {
			lease.Discard()
		} else {
			lease.Release()
		}
		s.log.Warn("transaction rejected", "hash", result.Hash.Hex(), "reason", reason, "error", err)
		return nil, domain.AtStage(domain.StageSubmit, "", &domain.SubmissionError{
			Kind:    domain.SubmissionKindRejected,
			Reason:  reason,
			TxHash:  result.Hash,
			Message: err.Error(),
			Tx:      TxContextOf(utx, result),
			Err:     err,
		})
	}

	lease.Commit()
	return result, nil
}

// PollInterval paces receipt polling to the block time.
func (s *Submitter) PollInterval() time.Duration {
	if s.profile.BlockTime <= 0 {
		return defaultPollInterval
	}
	interval := s.profile.BlockTime / 3
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return interval
}

// PollOnce fetches the receipt once; a missing receipt is reported as pending.
func (s *Submitter) PollOnce(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	r, err := s.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.PendingReceipt(hash), nil
		}
		return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
	}
	if r == nil {
		return domain.PendingReceipt(hash), nil
	}
	return domain.ReceiptFromTypes(r), nil
}

// AwaitReceipt polls until the transaction is mined or timeout elapses. A
// failed receipt is a normal result. Timing out only stops watching.
func (s *Submitter) AwaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*domain.Receipt, error) {
	if timeout <= 0 {
		timeout = s.profile.ConfirmTimeout
	}
	if timeout <= 0 {
		timeout = domain.DefaultConfirmTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.PollInterval())
	defer ticker.Stop()

	timedOut := func(cause error) error {
		s.log.Warn("confirmation window elapsed", "hash", hash.Hex(), "timeout", timeout)
		return domain.AtStage(domain.StageConfirm, "", &domain.SubmissionError{
			Kind:   domain.SubmissionKindTimeout,
			TxHash: hash,
			Err:    cause,
		})
	}

	for {
		receipt, err := s.PollOnce(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return nil, timedOut(ctx.Err())
			}
			return nil, domain.AtStage(domain.StageConfirm, "", unknownOutcome("eth_getTransactionReceipt", hash, domain.TxContext{}, err))
		}
		if receipt.Terminal() {
			s.log.Debug("transaction mined",
				"hash", hash.Hex(),
				"status", receipt.Status,
				"block", receipt.BlockNumber,
				"gasUsed", receipt.GasUsed)
			return receipt, nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, timedOut(nil)
		case <-ctx.Done():
			return nil, timedOut(ctx.Err())
		}
	}
}

// SubmitAndConfirm submits utx and waits for its receipt. Whenever the
// transaction may have reached the node the signed transaction is returned
// with the error so its hash can be re-polled.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, utx *domain.UnsignedTransaction, signer Signer, timeout time.Duration) (*domain.SignedTransaction, *domain.Receipt, error) {
	signed, err := s.Submit(ctx, utx, signer)
	if err != nil {
		return signed, nil, err
	}

	receipt, err := s.AwaitReceipt(ctx, signed.Hash, timeout)
	if err != nil {
		var (
			subErr       *domain.SubmissionError
			transportErr *domain.TransportError
		)
		switch {
		case errors.As(err, &subErr):
			subErr.Tx = TxContextOf(utx, signed)
		case errors.As(err, &transportErr):
			transportErr.Tx = TxContextOf(utx, signed)
		}
		return signed, nil, err
	}
	return signed, receipt, nil
}

// unknownOutcome marks err as a transport failure that happened after hash
// was handed to the node.
func unknownOutcome(op string, hash common.Hash, tx domain.TxContext, err error) error {
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		transportErr = &domain.TransportError{Op: op, Attempts: 1, Err: err}
		err = transportErr
	}
	transportErr.TxHash = hash
	transportErr.Tx = tx
	return err
}

// TxContextOf collects the diagnostic fields of a transaction.
func TxContextOf(utx *domain.UnsignedTransaction, signed *domain.SignedTransaction) domain.TxContext {
	tc := domain.TxContext{
		To:       utx.To,
		Data:     utx.Data,
		GasLimit: utx.GasLimit,
		GasPrice: utx.GasPrice,
	}
	if signed != nil {
		nonce := signed.Nonce
		tc.From = signed.From
		tc.Nonce = &nonce
	}
	return tc
}
