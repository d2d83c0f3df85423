// Package mempool maintains the pool of transactions admitted but not yet
// recorded in a block.
package mempool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/mempool/selector"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// Mempool represents a cache of transactions organized by account:nonce.
// Each account can hold at most one transaction per nonce; a conflicting
// admission is resolved by gas price.
type Mempool struct {
	pool     map[string]database.BlockTx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyPrice)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.BlockTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the mempool. When a transaction with the same
// account and nonce is already pending, the new one replaces it only if it
// pays a strictly higher gas price; otherwise the admission fails with a
// ConflictingNonce error and the pool is unchanged.
func (mp *Mempool) Upsert(tx database.BlockTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key, err := mapKey(tx)
	if err != nil {
		return 0, validate.NewError(validate.KindMalformed, "mapping transaction: %w", err)
	}

	if existing, exists := mp.pool[key]; exists {
		if tx.GasPrice <= existing.GasPrice {
			return len(mp.pool), validate.NewError(validate.KindConflictingNonce,
				"pending transaction %s pays %d per gas, replacement pays %d", key, existing.GasPrice, tx.GasPrice)
		}
	}

	mp.pool[key] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.BlockTx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key, err := mapKey(tx)
	if err != nil {
		return err
	}

	delete(mp.pool, key)

	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.BlockTx)
}

// EvictOlderThan removes and returns every transaction admitted strictly
// before the specified cutoff time.
func (mp *Mempool) EvictOlderThan(cutoff uint64) []database.BlockTx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var evicted []database.BlockTx
	for key, tx := range mp.pool {
		if tx.TimeStamp < cutoff {
			evicted = append(evicted, tx)
			delete(mp.pool, key)
		}
	}

	return evicted
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for the next block. Passing -1 for howMany considers every
// pending transaction; maxGas caps the sum of the gas limits of the
// selection.
func (mp *Mempool) PickBest(howMany int, maxGas uint64) []database.BlockTx {

	// Group the transactions by account.
	m := make(map[database.AccountID][]database.BlockTx)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for key, tx := range mp.pool {
			account := database.AccountID(strings.Split(key, ":")[0])
			m[account] = append(m[account], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany, maxGas)
}

// PendingForAccount returns the pending transactions for the specified
// account ordered by nonce. The pending view of an account applies these on
// top of its latest settled state.
func (mp *Mempool) PendingForAccount(accountID database.AccountID) []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var txs []database.BlockTx
	for key, tx := range mp.pool {
		if database.AccountID(strings.Split(key, ":")[0]) == accountID {
			txs = append(txs, tx)
		}
	}

	sortByNonce(txs)

	return txs
}

// Copy returns every transaction currently pending in the pool.
func (mp *Mempool) Copy() []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.BlockTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	return txs
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.BlockTx) (string, error) {
	account, err := tx.FromAccount()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:%d", account, tx.Nonce), nil
}

// sortByNonce orders the transactions by ascending nonce in place.
func sortByNonce(txs []database.BlockTx) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && txs[j].Nonce < txs[j-1].Nonce; j-- {
			txs[j], txs[j-1] = txs[j-1], txs[j]
		}
	}
}
