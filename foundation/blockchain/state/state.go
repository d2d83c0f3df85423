// Package state is the core API for the blockchain simulator and implements
// all the business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/execute"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
	"github.com/simchain/simchain/foundation/blockchain/mempool"
	"github.com/simchain/simchain/foundation/blockchain/signature"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background block production.
type Worker interface {
	Shutdown()
	SignalStartMining()
}

// Clock provides the time used to stamp produced blocks. Injecting it keeps
// block production reproducible under test.
type Clock interface {
	Now() time.Time
}

// realClock is the Clock used when the configuration does not provide one.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// =============================================================================

// ConsistencyError is returned when replaying the sealed chain at startup
// does not reproduce the state root recorded in a block. A node with an
// inconsistent chain refuses any further mutation.
type ConsistencyError struct {
	BlockNumber uint64
	Have        string
	Want        string
}

// Error implements the error interface.
func (ce *ConsistencyError) Error() string {
	return fmt.Sprintf("chain inconsistent at block %d, state root %s, recorded %s", ce.BlockNumber, ce.Have, ce.Want)
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	BeneficiaryID  database.AccountID
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	Clock          Clock
	EvHandler      EventHandler
}

// State manages the blockchain database, the mempool and block production.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	evHandler     EventHandler
	clock         Clock
	consistency   error

	genesis genesis.Genesis
	mempool *mempool.Mempool
	db      *database.Database

	Worker Worker
}

// New constructs a new blockchain node state. When the storage already holds
// a sealed chain, the chain is replayed through the executor and every block's
// recorded state root is checked against the recomputed one. A mismatch does
// not fail construction: the node comes up poisoned, serving queries but
// refusing mutation.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	// Seed the account database with the genesis balances.
	db, err := database.New(cfg.Genesis, cfg.Storage)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	mempool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	state := State{
		beneficiaryID: cfg.BeneficiaryID,
		evHandler:     ev,
		clock:         clock,

		genesis: cfg.Genesis,
		mempool: mempool,
		db:      db,
	}

	// Bring the chain up to date: replay what storage holds, or seal the
	// genesis block for a chain that has never run.
	if err := state.restore(cfg.Storage); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database file is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all block producing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Reset wipes the chain back to a fresh genesis. The mempool is dropped and
// the genesis block is sealed again. Reset clears a poisoned node.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mempool.Truncate()
	if err := s.db.Reset(); err != nil {
		return err
	}
	s.consistency = nil

	return s.sealGenesisBlock()
}

// Consistency returns the consistency failure that poisoned the node, or
// nil when the chain replayed cleanly.
func (s *State) Consistency() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.consistency
}

// checkMutable reports whether the node accepts state changing operations.
// Must be called with the mutex held.
func (s *State) checkMutable() error {
	if s.consistency != nil {
		return fmt.Errorf("node is read only: %w", s.consistency)
	}
	return nil
}

// =============================================================================

// restore loads the sealed chain from storage and replays it. An empty
// storage instead gets the genesis block sealed and persisted.
func (s *State) restore(storage database.Storage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var replayed int

	it := storage.ForEach()
	for blockData, err := it.Next(); !it.Done(); blockData, err = it.Next() {
		if err != nil {
			return err
		}

		block, err := database.ToBlock(blockData)
		if err != nil {
			return fmt.Errorf("restoring block %d: %w", blockData.Header.Number, err)
		}

		if err := s.replayBlock(block); err != nil {
			var ce *ConsistencyError
			if errors.As(err, &ce) {
				s.evHandler("state: restore: POISONED: %s", err)
				s.consistency = err
				return nil
			}
			return err
		}

		replayed++
	}

	if replayed == 0 {
		s.evHandler("state: restore: empty storage: sealing genesis block")
		return s.sealGenesisBlock()
	}

	s.evHandler("state: restore: replayed %d blocks: state root %s", replayed, s.db.HashState())

	return nil
}

// sealGenesisBlock writes block zero. It carries no transactions and its
// state root fingerprints the genesis balances. Must be called with the
// mutex held.
func (s *State) sealGenesisBlock() error {
	header := database.BlockHeader{
		Number:     0,
		ParentHash: signature.ZeroHash,
		TimeStamp:  uint64(s.genesis.Date.Unix()),
		StateRoot:  s.db.HashState(),
		GasLimit:   s.genesis.BlockGasLimit,
	}

	block, err := database.NewBlock(header, nil)
	if err != nil {
		return err
	}

	return s.db.WriteBlock(block, nil)
}

// replayBlock applies one sealed block to the database and verifies that
// execution reproduces the recorded state root. Sealed transactions were
// validated at admission, so replay executes them directly. Must be called
// with the mutex held.
func (s *State) replayBlock(block database.Block) error {

	// The genesis block carries no transactions; only its root is checked.
	if block.Header.Number > 0 {
		if err := block.ValidateBlock(s.db.LatestBlock(), s.evHandler); err != nil {
			return err
		}
	}

	receipts := make([]database.Receipt, 0, len(block.Transactions()))

	for _, tx := range block.Transactions() {
		fromID, err := tx.FromAccount()
		if err != nil {
			return fmt.Errorf("replaying block %d: %w", block.Header.Number, err)
		}

		vtx := validate.ValidatedTx{Tx: tx.SignedTx, FromID: fromID}
		env := execute.Env{
			BlockNumber:   block.Header.Number,
			BeneficiaryID: block.Header.BeneficiaryID,
		}

		receipt, err := execute.Execute(s.db, vtx, env)
		if err != nil {
			return &ConsistencyError{BlockNumber: block.Header.Number, Have: s.db.HashState(), Want: block.Header.StateRoot}
		}

		receipts = append(receipts, receipt)
	}

	if have := s.db.HashState(); have != block.Header.StateRoot {
		return &ConsistencyError{BlockNumber: block.Header.Number, Have: have, Want: block.Header.StateRoot}
	}

	localizeReceipts(block, receipts)

	return s.db.LoadBlock(block, receipts)
}
