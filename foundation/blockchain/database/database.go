// Package database handles all the lower level support for maintaining the
// blockchain in memory and persisting sealed blocks through a configured
// storage implementation.
package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/simchain/simchain/foundation/blockchain/genesis"
	"github.com/simchain/simchain/foundation/blockchain/signature"
)

// ErrNotFound is returned when a block, transaction or receipt is not known.
var ErrNotFound = errors.New("not found")

// Storage interface represents the behavior required to be implemented by
// any package providing support for persisting and reading sealed blocks.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the sealed blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database manages data related to accounts that have transacted on the
// blockchain, the sealed block history, and the receipts and logs produced
// by execution. All mutation is expected to be serialized by the caller;
// the internal mutex exists so reads can run concurrently with it.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[AccountID]Account
	journal     []journalEntry

	blocks      []Block
	blockByHash map[string]uint64
	receipts    map[string]Receipt
	txByHash    map[string]BlockTx

	storage Storage
}

// New constructs a new database value and applies the genesis balances.
// The sealed block history is not replayed here; that is the concern of
// the state package which owns execution.
func New(genesis genesis.Genesis, storage Storage) (*Database, error) {
	db := Database{
		genesis:     genesis,
		accounts:    make(map[AccountID]Account),
		blockByHash: make(map[string]uint64),
		receipts:    make(map[string]Receipt),
		txByHash:    make(map[string]BlockTx),
		storage:     storage,
	}

	// Update the database with account balance information from genesis.
	for accountStr, balance := range genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return nil, err
		}
		db.accounts[accountID] = newAccount(accountID, balance)
	}

	return &db, nil
}

// Close closes the underlying block storage.
func (db *Database) Close() {
	db.storage.Close()
}

// Reset re-initializes the database back to the genesis state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.latestBlock = Block{}
	db.journal = nil
	db.blocks = nil
	db.blockByHash = make(map[string]uint64)
	db.receipts = make(map[string]Receipt)
	db.txByHash = make(map[string]BlockTx)

	db.accounts = make(map[AccountID]Account)
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return err
		}
		db.accounts[accountID] = newAccount(accountID, balance)
	}

	return nil
}

// =============================================================================
// Account access

// GetAccount never fails. An account that has not been written to reads as
// the zero valued account.
func (db *Database) GetAccount(accountID AccountID) Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return newAccount(accountID, 0)
	}

	return account.clone()
}

// HasAccount reports whether the account has ever been written to.
func (db *Database) HasAccount(accountID AccountID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.accounts[accountID]
	return exists
}

// GetStorage returns the value stored under the specified key for the
// specified account. A missing key reads as the empty string.
func (db *Database) GetStorage(accountID AccountID, key string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.accounts[accountID].Storage[key]
}

// GetCode returns the contract code held by the specified account.
func (db *Database) GetCode(accountID AccountID) []byte {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]byte(nil), db.accounts[accountID].Code...)
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account, len(db.accounts))
	for accountID, account := range db.accounts {
		accounts[accountID] = account.clone()
	}

	return accounts
}

// =============================================================================
// Account mutation. Every write is journaled so a snapshot can be reverted.

// AddBalance credits the specified account.
func (db *Database) AddBalance(accountID AccountID, amount uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.touch(accountID)
	db.journal = append(db.journal, balanceChange{accountID, account.Balance})

	account.Balance += amount
	db.accounts[accountID] = account
}

// SubBalance debits the specified account. The balance is never allowed to
// go negative.
func (db *Database) SubBalance(accountID AccountID, amount uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.touch(accountID)
	if account.Balance < amount {
		return fmt.Errorf("insufficient balance, bal %d, needed %d", account.Balance, amount)
	}
	db.journal = append(db.journal, balanceChange{accountID, account.Balance})

	account.Balance -= amount
	db.accounts[accountID] = account

	return nil
}

// IncrementNonce bumps the account nonce by exactly one.
func (db *Database) IncrementNonce(accountID AccountID) {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.touch(accountID)
	db.journal = append(db.journal, nonceChange{accountID, account.Nonce})

	account.Nonce++
	db.accounts[accountID] = account
}

// SetStorage writes a key/value pair into the account's contract storage.
func (db *Database) SetStorage(accountID AccountID, key string, value string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.touch(accountID)
	if account.Storage == nil {
		account.Storage = make(map[string]string)
	}

	prev, existed := account.Storage[key]
	db.journal = append(db.journal, storageChange{accountID, key, prev, existed})

	account.Storage[key] = value
	db.accounts[accountID] = account
}

// SetCode installs contract code on the account.
func (db *Database) SetCode(accountID AccountID, code []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.touch(accountID)
	db.journal = append(db.journal, codeChange{accountID, account.Code})

	account.Code = append([]byte(nil), code...)
	db.accounts[accountID] = account
}

// touch materializes the account in the map, journaling the creation so a
// revert removes it again. Must be called with the write lock held.
func (db *Database) touch(accountID AccountID) Account {
	account, exists := db.accounts[accountID]
	if !exists {
		account = newAccount(accountID, 0)
		db.accounts[accountID] = account
		db.journal = append(db.journal, createAccount{accountID})
	}

	return account
}

// =============================================================================
// Snapshot support

// SnapshotID identifies a point in the journal that can be reverted to.
type SnapshotID int

// Snapshot captures the current state so later deltas can be discarded with
// RevertToSnapshot. Snapshots form a stack: reverting to an older snapshot
// discards everything applied after it.
func (db *Database) Snapshot() SnapshotID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return SnapshotID(len(db.journal))
}

// RevertToSnapshot undoes every delta applied after the snapshot was taken.
func (db *Database) RevertToSnapshot(id SnapshotID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if int(id) > len(db.journal) || id < 0 {
		return fmt.Errorf("corrupted snapshot id %d, journal length %d", id, len(db.journal))
	}

	for i := len(db.journal) - 1; i >= int(id); i-- {
		db.journal[i].revert(db)
	}
	db.journal = db.journal[:id]

	return nil
}

// =============================================================================
// State root

// accountState is the canonical form of an account used for hashing.
type accountState struct {
	AccountID AccountID `json:"account_id"`
	Nonce     uint64    `json:"nonce"`
	Balance   uint64    `json:"balance"`
	Code      []byte    `json:"code,omitempty"`
	Storage   []string  `json:"storage,omitempty"`
}

// HashState returns a deterministic fingerprint over all account and
// storage data. Two databases that went through the same sequence of
// deltas always produce the same root.
func (db *Database) HashState() string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}
	sort.Sort(byAccount(accounts))

	states := make([]accountState, len(accounts))
	for i, account := range accounts {
		state := accountState{
			AccountID: account.AccountID,
			Nonce:     account.Nonce,
			Balance:   account.Balance,
			Code:      account.Code,
		}
		for _, key := range account.StorageKeys() {
			state.Storage = append(state.Storage, key, account.Storage[key])
		}
		states[i] = state
	}

	return signature.Hash(states)
}

// =============================================================================
// Block history

// WriteBlock persists a sealed block, its receipts and logs, and makes it
// the latest block. The journal is collapsed since sealed state is final.
func (db *Database) WriteBlock(block Block, receipts []Receipt) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Write(NewBlockData(block)); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block)
	db.blockByHash[block.Hash()] = block.Header.Number
	db.latestBlock = block

	for _, receipt := range receipts {
		db.receipts[receipt.TxHash] = receipt
	}
	for _, tx := range block.Transactions() {
		db.txByHash[tx.HashString()] = tx
	}

	db.journal = nil

	return nil
}

// LoadBlock indexes a block that is already persisted. It is used when
// replaying the chain from storage at startup, where writing the block
// again would duplicate it.
func (db *Database) LoadBlock(block Block, receipts []Receipt) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = append(db.blocks, block)
	db.blockByHash[block.Hash()] = block.Header.Number
	db.latestBlock = block

	for _, receipt := range receipts {
		db.receipts[receipt.TxHash] = receipt
	}
	for _, tx := range block.Transactions() {
		db.txByHash[tx.HashString()] = tx
	}

	db.journal = nil

	return nil
}

// LatestBlock returns the latest sealed block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// BlockCount returns the number of sealed blocks.
func (db *Database) BlockCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// GetBlockByNumber returns the sealed block with the specified number.
func (db *Database) GetBlockByNumber(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, block := range db.blocks {
		if block.Header.Number == num {
			return block, nil
		}
	}

	return Block{}, ErrNotFound
}

// GetBlockByHash returns the sealed block with the specified hash.
func (db *Database) GetBlockByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	num, exists := db.blockByHash[hash]
	if !exists {
		return Block{}, ErrNotFound
	}

	for _, block := range db.blocks {
		if block.Header.Number == num {
			return block, nil
		}
	}

	return Block{}, ErrNotFound
}

// GetReceipt returns the receipt recorded for the specified transaction.
func (db *Database) GetReceipt(txHash string) (Receipt, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	receipt, exists := db.receipts[txHash]
	if !exists {
		return Receipt{}, ErrNotFound
	}

	return receipt, nil
}

// GetTx returns the sealed transaction with the specified hash.
func (db *Database) GetTx(txHash string) (BlockTx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tx, exists := db.txByHash[txHash]
	if !exists {
		return BlockTx{}, ErrNotFound
	}

	return tx, nil
}

// ForEachBlock returns the sealed blocks in order.
func (db *Database) ForEachBlock() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]Block(nil), db.blocks...)
}

// =============================================================================

// Clone produces an independent copy of the account state for what-if
// execution, such as the pending view or gas estimation. Block history is
// shared read-only through the original; the clone never persists blocks.
func (db *Database) Clone() *Database {
	db.mu.RLock()
	defer db.mu.RUnlock()

	clone := Database{
		genesis:     db.genesis,
		latestBlock: db.latestBlock,
		accounts:    make(map[AccountID]Account, len(db.accounts)),
		blockByHash: make(map[string]uint64),
		receipts:    make(map[string]Receipt),
		txByHash:    make(map[string]BlockTx),
		storage:     discardStorage{},
	}

	for accountID, account := range db.accounts {
		clone.accounts[accountID] = account.clone()
	}

	return &clone
}

// discardStorage satisfies the Storage interface for clones that must
// never persist anything.
type discardStorage struct{}

func (discardStorage) Write(blockData BlockData) error        { return nil }
func (discardStorage) GetBlock(num uint64) (BlockData, error) { return BlockData{}, ErrNotFound }
func (discardStorage) ForEach() Iterator                      { return discardIterator{} }
func (discardStorage) Close() error                           { return nil }
func (discardStorage) Reset() error                           { return nil }

type discardIterator struct{}

func (discardIterator) Next() (BlockData, error) { return BlockData{}, ErrNotFound }
func (discardIterator) Done() bool               { return true }
