// Package devchain is an in-process EVM chain that answers the same calls
// as a JSON-RPC node. It backs --dry-run and the end-to-end tests.
package devchain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/sling/internal/domain"
)

const (
	defaultBlockGasLimit uint64 = 30_000_000
	defaultBlockPeriod          = 15 * time.Second
)

// Option configures a Chain
type Option func(*Chain)

// WithChainID sets the chain id the chain signs and validates with.
func WithChainID(id uint64) Option {
	return func(c *Chain) { c.chainID = new(big.Int).SetUint64(id) }
}

// WithEVMVersion pins the hardfork the chain executes.
func WithEVMVersion(v domain.EVMVersion) Option {
	return func(c *Chain) { c.evmVersion = v }
}

// WithAutoMine mines a block as soon as a transaction is admitted. With
// auto-mining off, blocks are produced by Mine or Run.
func WithAutoMine(on bool) Option {
	return func(c *Chain) { c.autoMine = on }
}

// WithBlockPeriod sets the spacing of block timestamps and the interval Run
// mines at.
func WithBlockPeriod(d time.Duration) Option {
	return func(c *Chain) { c.period = d }
}

// WithMinGasPrice makes the chain refuse transactions priced below p.
func WithMinGasPrice(p *big.Int) Option {
	return func(c *Chain) { c.minGasPrice = new(big.Int).Set(p) }
}

// WithSuggestedGasPrice sets what SuggestGasPrice answers. It defaults to the
// minimum gas price.
func WithSuggestedGasPrice(p *big.Int) Option {
	return func(c *Chain) { c.suggestedPrice = new(big.Int).Set(p) }
}

// WithBlockGasLimit sets the gas available per block.
func WithBlockGasLimit(limit uint64) Option {
	return func(c *Chain) { c.gasLimit = limit }
}

// WithAlloc funds accounts in the genesis state.
func WithAlloc(alloc map[common.Address]*big.Int) Option {
	return func(c *Chain) {
		for addr, bal := range alloc {
			c.alloc[addr] = new(big.Int).Set(bal)
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Chain) { c.log = log }
}

type block struct {
	number uint64
	hash   common.Hash
	time   uint64
	txs    []common.Hash
}

type pooledTx struct {
	tx   *types.Transaction
	from common.Address
	seq  uint64
}

// Chain is a single-node chain with a transaction pool. It is safe for
// concurrent use.
type Chain struct {
	chainID        *big.Int
	evmVersion     domain.EVMVersion
	autoMine       bool
	period         time.Duration
	minGasPrice    *big.Int
	suggestedPrice *big.Int
	gasLimit       uint64
	alloc          map[common.Address]*big.Int
	log            *slog.Logger

	config   *params.ChainConfig
	merged   bool
	signer   types.Signer
	coinbase common.Address

	mu       sync.Mutex
	state    *state.StateDB
	history  []*state.StateDB
	blocks   []*block
	pool     map[common.Address]map[uint64]*pooledTx
	known    map[common.Hash]struct{}
	receipts map[common.Hash]*types.Receipt
	seq      uint64
}

// New creates a chain at genesis.
func New(opts ...Option) (*Chain, error) {
	c := &Chain{
		chainID:     new(big.Int).SetUint64(domain.DefaultChainID),
		evmVersion:  domain.EVMLondon,
		autoMine:    true,
		period:      defaultBlockPeriod,
		minGasPrice: new(big.Int),
		gasLimit:    defaultBlockGasLimit,
		alloc:       make(map[common.Address]*big.Int),
		log:         slog.Default(),
		pool:        make(map[common.Address]map[uint64]*pooledTx),
		known:       make(map[common.Hash]struct{}),
		receipts:    make(map[common.Hash]*types.Receipt),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.suggestedPrice == nil {
		c.suggestedPrice = new(big.Int).Set(c.minGasPrice)
	}
	c.log = c.log.With("component", "devchain")

	cfg, merged, err := chainConfig(c.chainID, c.evmVersion)
	if err != nil {
		return nil, err
	}
	c.config = cfg
	c.merged = merged
	c.signer = types.LatestSignerForChainID(c.chainID)

	statedb, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, fmt.Errorf("create genesis state: %w", err)
	}
	for addr, bal := range c.alloc {
		statedb.AddBalance(addr, uint256.MustFromBig(bal), tracing.BalanceIncreaseGenesisBalance)
	}
	statedb.Finalise(true)
	c.state = statedb

	genesis := &block{number: 0, time: uint64(time.Now().Unix())}
	genesis.hash = blockHash(genesis.number, common.Hash{}, nil)
	c.blocks = []*block{genesis}
	c.history = []*state.StateDB{statedb.Copy()}

	c.log.Debug("genesis created", "chainId", c.chainID, "evmVersion", c.evmVersion, "accounts", len(c.alloc))
	return c, nil
}

func blockHash(number uint64, parent common.Hash, txs []common.Hash) common.Hash {
	buf := make([]byte, 8, 8+common.HashLength*(len(txs)+1))
	binary.BigEndian.PutUint64(buf, number)
	buf = append(buf, parent.Bytes()...)
	for _, h := range txs {
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// ChainID returns the chain id
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// BlockNumber returns the number of the head block
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head().number, nil
}

// BalanceAt returns the balance of account at the given block
func (c *Chain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.stateAt(blockNumber)
	if err != nil {
		return nil, err
	}
	return st.GetBalance(account).ToBig(), nil
}

// CodeAt returns the code at the given block
func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.stateAt(blockNumber)
	if err != nil {
		return nil, err
	}
	return common.CopyBytes(st.GetCode(contract)), nil
}

// PendingNonceAt counts mined and contiguous pooled transactions of account
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nonce := c.state.GetNonce(account)
	for {
		if _, ok := c.pool[account][nonce]; !ok {
			return nonce, nil
		}
		nonce++
	}
}

// SuggestGasPrice returns the configured suggestion
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.suggestedPrice), nil
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while it is pending or unknown.
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	cp := *r
	return &cp, nil
}

// SendTransaction validates tx the way a geth pool does and queues it.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !tx.Protected() {
		return rejectf("only replay-protected (EIP-155) transactions allowed over RPC")
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		if errors.Is(err, types.ErrInvalidChainId) {
			return rejectf("invalid chain id for signer: have %s want %s", tx.ChainId(), c.chainID)
		}
		return rejectf("invalid sender: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hash := tx.Hash()
	if _, ok := c.known[hash]; ok {
		return rejectf("already known")
	}
	stateNonce := c.state.GetNonce(from)
	if tx.Nonce() < stateNonce {
		return rejectf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), stateNonce)
	}
	if _, taken := c.pool[from][tx.Nonce()]; taken {
		return rejectf("replacement transaction underpriced")
	}
	if tx.GasPrice().Cmp(c.minGasPrice) < 0 {
		return rejectf("transaction underpriced: gas price %s, minimum needed %s", tx.GasPrice(), c.minGasPrice)
	}
	if tx.Gas() > c.gasLimit {
		return rejectf("exceeds block gas limit")
	}

	rules := c.config.Rules(new(big.Int).SetUint64(c.head().number+1), c.merged, c.head().time+c.periodSeconds())
	intrinsic, err := core.IntrinsicGas(tx.Data(), tx.AccessList(), nil, tx.To() == nil, rules.IsHomestead, rules.IsIstanbul, rules.IsShanghai)
	if err != nil {
		return rejectf("%v", err)
	}
	if tx.Gas() < intrinsic {
		return rejectf("intrinsic gas too low: have %d, want %d", tx.Gas(), intrinsic)
	}

	balance := c.state.GetBalance(from).ToBig()
	if cost := tx.Cost(); balance.Cmp(cost) < 0 {
		return rejectf("insufficient funds for gas * price + value: address %s have %s want %s", from.Hex(), balance, cost)
	}

	if c.pool[from] == nil {
		c.pool[from] = make(map[uint64]*pooledTx)
	}
	c.seq++
	c.pool[from][tx.Nonce()] = &pooledTx{tx: tx, from: from, seq: c.seq}
	c.known[hash] = struct{}{}
	c.log.Debug("transaction admitted", "hash", hash.Hex(), "from", from.Hex(), "nonce", tx.Nonce())

	if c.autoMine {
		c.mineLocked()
	}
	return nil
}

// CallContract executes msg against the state at blockNumber without
// committing anything.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.stateAt(blockNumber)
	if err != nil {
		return nil, err
	}
	b := c.head()
	if blockNumber != nil {
		b = c.blocks[blockNumber.Uint64()]
	}

	gas := msg.Gas
	if gas == 0 {
		gas = c.gasLimit
	}
	price := msg.GasPrice
	if price == nil {
		price = new(big.Int)
	}
	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}

	m := &core.Message{
		From:             msg.From,
		To:               msg.To,
		Nonce:            st.GetNonce(msg.From),
		Value:            value,
		GasLimit:         gas,
		GasPrice:         price,
		GasFeeCap:        price,
		GasTipCap:        price,
		Data:             msg.Data,
		SkipNonceChecks:  true,
		SkipFromEOACheck: true,
	}

	evm := vm.NewEVM(c.blockContext(b.number, b.time), st, c.config, vm.Config{NoBaseFee: true})
	evm.SetTxContext(core.NewEVMTxContext(m))
	res, err := core.ApplyMessage(evm, m, new(core.GasPool).AddGas(math.MaxUint64))
	if err != nil {
		return nil, rejectf("%v", err)
	}
	if errors.Is(res.Err, vm.ErrExecutionReverted) {
		return nil, revertError(res.Revert())
	}
	if res.Err != nil {
		return nil, rejectf("%v", res.Err)
	}
	return res.Return(), nil
}

// Mine produces one block from the pool and returns its number.
func (c *Chain) Mine() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mineLocked()
}

// Pending returns how many transactions wait in the pool.
func (c *Chain) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, txs := range c.pool {
		n += len(txs)
	}
	return n
}

// Fund credits amount to addr in the head state.
func (c *Chain) Fund(addr common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.AddBalance(addr, uint256.MustFromBig(amount), tracing.BalanceChangeUnspecified)
	c.state.Finalise(true)
}

// Run mines a block every block period until ctx is done.
func (c *Chain) Run(ctx context.Context) {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Pending() > 0 {
				c.Mine()
			}
		}
	}
}

func (c *Chain) head() *block {
	return c.blocks[len(c.blocks)-1]
}

func (c *Chain) periodSeconds() uint64 {
	s := uint64(c.period / time.Second)
	if s == 0 {
		s = 1
	}
	return s
}

func (c *Chain) stateAt(number *big.Int) (*state.StateDB, error) {
	if number == nil {
		return c.state.Copy(), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(c.history)) {
		return nil, rejectf("header not found")
	}
	return c.history[number.Uint64()].Copy(), nil
}

func (c *Chain) blockContext(number, timestamp uint64) vm.BlockContext {
	ctx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     c.getHash,
		Coinbase:    c.coinbase,
		GasLimit:    c.gasLimit,
		BlockNumber: new(big.Int).SetUint64(number),
		Time:        timestamp,
		Difficulty:  big.NewInt(1),
	}
	if c.config.IsLondon(ctx.BlockNumber) {
		ctx.BaseFee = new(big.Int)
	}
	if c.merged {
		random := common.BigToHash(new(big.Int).SetUint64(number))
		ctx.Random = &random
		ctx.Difficulty = new(big.Int)
		ctx.BlobBaseFee = big.NewInt(1)
	}
	return ctx
}

// getHash is called by BLOCKHASH with the mutex held.
func (c *Chain) getHash(n uint64) common.Hash {
	if n < uint64(len(c.blocks)) {
		return c.blocks[n].hash
	}
	return common.Hash{}
}

// nextReady picks the oldest admitted transaction whose nonce is the next
// one of its sender.
func (c *Chain) nextReady(nonces map[common.Address]uint64) *pooledTx {
	senders := make([]common.Address, 0, len(c.pool))
	for addr := range c.pool {
		senders = append(senders, addr)
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i].Cmp(senders[j]) < 0 })

	var best *pooledTx
	for _, addr := range senders {
		next, ok := nonces[addr]
		if !ok {
			next = c.state.GetNonce(addr)
			nonces[addr] = next
		}
		if p, ok := c.pool[addr][next]; ok && (best == nil || p.seq < best.seq) {
			best = p
		}
	}
	return best
}

func (c *Chain) mineLocked() uint64 {
	parent := c.head()
	number := parent.number + 1
	timestamp := parent.time + c.periodSeconds()
	blockCtx := c.blockContext(number, timestamp)

	type applied struct {
		tx     *types.Transaction
		from   common.Address
		result *core.ExecutionResult
	}
	var (
		included []applied
		gp       = new(core.GasPool).AddGas(c.gasLimit)
		nonces   = make(map[common.Address]uint64)
	)

	for {
		p := c.nextReady(nonces)
		if p == nil || gp.Gas() < p.tx.Gas() {
			break
		}
		delete(c.pool[p.from], p.tx.Nonce())
		if len(c.pool[p.from]) == 0 {
			delete(c.pool, p.from)
		}

		msg, err := core.TransactionToMessage(p.tx, c.signer, blockCtx.BaseFee)
		if err != nil {
			c.log.Warn("dropping transaction", "hash", p.tx.Hash().Hex(), "error", err)
			delete(c.known, p.tx.Hash())
			continue
		}

		c.state.SetTxContext(p.tx.Hash(), len(included))
		evm := vm.NewEVM(blockCtx, c.state, c.config, vm.Config{})
		evm.SetTxContext(core.NewEVMTxContext(msg))
		res, err := core.ApplyMessage(evm, msg, gp)
		if err != nil {
			c.log.Warn("dropping transaction", "hash", p.tx.Hash().Hex(), "error", err)
			delete(c.known, p.tx.Hash())
			continue
		}
		c.state.Finalise(true)
		nonces[p.from] = p.tx.Nonce() + 1
		included = append(included, applied{tx: p.tx, from: p.from, result: res})
	}

	hashes := make([]common.Hash, len(included))
	for i, a := range included {
		hashes[i] = a.tx.Hash()
	}
	b := &block{
		number: number,
		hash:   blockHash(number, parent.hash, hashes),
		time:   timestamp,
		txs:    hashes,
	}

	var cumulative uint64
	for i, a := range included {
		cumulative += a.result.UsedGas
		r := &types.Receipt{
			Type:              a.tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: cumulative,
			TxHash:            a.tx.Hash(),
			GasUsed:           a.result.UsedGas,
			EffectiveGasPrice: a.tx.GasPrice(),
			Logs:              c.state.GetLogs(a.tx.Hash(), number, b.hash),
			BlockHash:         b.hash,
			BlockNumber:       new(big.Int).SetUint64(number),
			TransactionIndex:  uint(i),
		}
		if a.result.Failed() {
			r.Status = types.ReceiptStatusFailed
		}
		if a.tx.To() == nil {
			r.ContractAddress = crypto.CreateAddress(a.from, a.tx.Nonce())
		}
		c.receipts[r.TxHash] = r
	}

	c.blocks = append(c.blocks, b)
	c.history = append(c.history, c.state.Copy())
	c.log.Debug("mined block", "number", number, "txs", len(included), "gasUsed", cumulative)
	return number
}
