// Package storage implements the database.Storage interface for keeping
// sealed blocks in memory or in per-block files on disk.
package storage

import (
	"errors"
	"sync"

	"github.com/simchain/simchain/foundation/blockchain/database"
)

// Memory represents the storage implementation for keeping sealed blocks
// in memory. This is the default for the simulator since cross-restart
// durability is not a goal.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.BlockData
}

// NewMemory constructs an in-memory block store.
func NewMemory() (*Memory, error) {
	return &Memory{}, nil
}

// Close in this implementation has nothing to do.
func (m *Memory) Close() error {
	return nil
}

// Write appends a new sealed block.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = append(m.blocks, blockData)
	return nil
}

// GetBlock returns the block with the specified number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, blockData := range m.blocks {
		if blockData.Header.Number == num {
			return blockData, nil
		}
	}

	return database.BlockData{}, errors.New("block not found")
}

// ForEach returns an iterator to walk through all the blocks starting
// with the first sealed block.
func (m *Memory) ForEach() database.Iterator {
	return &memoryIterator{storage: m}
}

// Reset clears out the sealed block history.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// memoryIterator represents the iteration implementation for walking
// through the blocks held in memory.
type memoryIterator struct {
	storage *Memory
	current int
	eoc     bool
}

// Next retrieves the next block.
func (mi *memoryIterator) Next() (database.BlockData, error) {
	mi.storage.mu.RLock()
	defer mi.storage.mu.RUnlock()

	if mi.current >= len(mi.storage.blocks) {
		mi.eoc = true
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData := mi.storage.blocks[mi.current]
	mi.current++

	return blockData, nil
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
