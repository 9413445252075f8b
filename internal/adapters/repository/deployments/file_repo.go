package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

const (
	SlingDir         = ".sling"
	DeploymentsFile  = "deployments.json"
	TransactionsFile = "transactions.json"
	AddressBookFile  = "addresses.json"
)

// AddressBook maps chain id -> deployment id -> address. It is written next
// to the registry for scripts that only need addresses.
type AddressBook map[uint64]map[string]common.Address

// FileRepository stores deployments and transactions in json files under
// the data directory
type FileRepository struct {
	dir          string
	mu           sync.RWMutex
	deployments  map[string]*domain.DeploymentRecord
	transactions map[common.Hash]*domain.TransactionRecord
	byAddress    map[uint64]map[common.Address]string
}

// NewFileRepository opens the registry in dataDir, creating it if needed
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", dataDir, err)
	}

	r := &FileRepository{
		dir:          dataDir,
		deployments:  make(map[string]*domain.DeploymentRecord),
		transactions: make(map[common.Hash]*domain.TransactionRecord),
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return r, nil
}

func (r *FileRepository) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadFile(DeploymentsFile, &r.deployments); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load deployments: %w", err)
	}
	if err := r.loadFile(TransactionsFile, &r.transactions); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	r.rebuildLookups()
	return nil
}

func (r *FileRepository) loadFile(filename string, v any) error {
	data, err := os.ReadFile(filepath.Join(r.dir, filename))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (r *FileRepository) save() error {
	if err := r.saveFile(DeploymentsFile, r.deployments); err != nil {
		return fmt.Errorf("failed to save deployments: %w", err)
	}
	if err := r.saveFile(TransactionsFile, r.transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	if err := r.saveFile(AddressBookFile, r.addressBook()); err != nil {
		return fmt.Errorf("failed to save address book: %w", err)
	}
	return nil
}

// saveFile writes through a temp file and a rename so readers never see a
// half-written registry
func (r *FileRepository) saveFile(filename string, v any) error {
	path := filepath.Join(r.dir, filename)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (r *FileRepository) rebuildLookups() {
	r.byAddress = make(map[uint64]map[common.Address]string)
	for id, dep := range r.deployments {
		if r.byAddress[dep.ChainID] == nil {
			r.byAddress[dep.ChainID] = make(map[common.Address]string)
		}
		r.byAddress[dep.ChainID][dep.Address] = id
	}
}

func (r *FileRepository) addressBook() AddressBook {
	book := make(AddressBook)
	for id, dep := range r.deployments {
		if book[dep.ChainID] == nil {
			book[dep.ChainID] = make(map[string]common.Address)
		}
		book[dep.ChainID][id] = dep.Address
	}
	return book
}

// SaveDeployment saves or replaces a deployment. Redeploying under the same
// id points the id at the new address.
func (r *FileRepository) SaveDeployment(ctx context.Context, record *domain.DeploymentRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: deployment without id", domain.ErrInvalidRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	clone := *record
	r.deployments[record.ID] = &clone
	r.rebuildLookups()
	return r.save()
}

// GetDeployment retrieves a deployment by id
func (r *FileRepository) GetDeployment(ctx context.Context, id string) (*domain.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dep, ok := r.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}
	clone := *dep
	return &clone, nil
}

// GetDeploymentByAddress retrieves a deployment by chain id and address
func (r *FileRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address common.Address) (*domain.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAddress[chainID][address]
	if !ok {
		return nil, fmt.Errorf("deployment at %s on chain %d: %w", address.Hex(), chainID, domain.ErrNotFound)
	}
	clone := *r.deployments[id]
	return &clone, nil
}

// ListDeployments returns the deployments matching filter in no particular order
func (r *FileRepository) ListDeployments(ctx context.Context, filter usecase.DeploymentFilter) ([]*domain.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := lo.Filter(lo.Values(r.deployments), func(dep *domain.DeploymentRecord, _ int) bool {
		if filter.Network != "" && dep.Network != filter.Network {
			return false
		}
		if filter.ChainID != 0 && dep.ChainID != filter.ChainID {
			return false
		}
		return filter.ContractName == "" || strings.EqualFold(dep.ContractName, filter.ContractName)
	})
	return lo.Map(matches, func(dep *domain.DeploymentRecord, _ int) *domain.DeploymentRecord {
		clone := *dep
		return &clone
	}), nil
}

// SaveTransaction saves or updates a transaction keyed by hash
func (r *FileRepository) SaveTransaction(ctx context.Context, record *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	clone := *record
	r.transactions[record.Hash] = &clone
	return r.save()
}

// GetTransaction retrieves a transaction by hash
func (r *FileRepository) GetTransaction(ctx context.Context, hash common.Hash) (*domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[hash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), domain.ErrNotFound)
	}
	clone := *tx
	return &clone, nil
}

// ListTransactions returns every recorded transaction, oldest first
func (r *FileRepository) ListTransactions(ctx context.Context) ([]*domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.MapToSlice(r.transactions, func(_ common.Hash, tx *domain.TransactionRecord) *domain.TransactionRecord {
		clone := *tx
		return &clone
	})
	sortTransactions(result)
	return result, nil
}

func sortTransactions(txs []*domain.TransactionRecord) {
	// nonce breaks ties between transactions submitted in the same instant
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.Nonce < b.Nonce
	})
}

var _ usecase.DeploymentRepository = (*FileRepository)(nil)
