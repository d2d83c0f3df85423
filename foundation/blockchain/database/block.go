package database

import (
	"fmt"
	"time"

	"github.com/simchain/simchain/foundation/blockchain/merkle"
	"github.com/simchain/simchain/foundation/blockchain/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Block number in the chain, 0 based and strictly increasing.
	ParentHash    string    `json:"parent_hash"`     // Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Time the block was sealed, supplied by the node clock.
	BeneficiaryID AccountID `json:"beneficiary"`     // The account receiving the gas fees.
	StateRoot     string    `json:"state_root"`      // Fingerprint of the account database after applying the block.
	TransRoot     string    `json:"trans_root"`      // Merkle tree root hash for the transactions in this block.
	GasUsed       uint64    `json:"gas_used"`        // Total gas consumed by the transactions in this block.
	GasLimit      uint64    `json:"block_gas_limit"` // Maximum gas the block was allowed to consume.
}

// Block represents a group of transactions sealed together. Immutable once
// sealed.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[BlockTx]
}

// NewBlock constructs a sealed block from the specified header information
// and executed transactions. An empty transaction set is permitted since
// empty blocks can be requested explicitly.
func NewBlock(header BlockHeader, trans []BlockTx) (Block, error) {
	var tree *merkle.Tree[BlockTx]

	if len(trans) > 0 {
		var err error
		tree, err = merkle.NewTree(trans)
		if err != nil {
			return Block{}, err
		}
		header.TransRoot = tree.RootHex()
	} else {
		header.TransRoot = signature.ZeroHash
	}

	return Block{Header: header, Trans: tree}, nil
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() string {
	if b.Header.Number == 0 && b.Header.StateRoot == "" {
		return signature.ZeroHash
	}

	// Hashing only the block header, not the whole block. The header pins
	// the transactions through the merkle root and the resulting state
	// through the state root.
	return signature.Hash(b.Header)
}

// Transactions returns the transactions sealed into the block in order.
func (b Block) Transactions() []BlockTx {
	if b.Trans == nil {
		return nil
	}
	return b.Trans.Values()
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.ParentHash != previousBlock.Hash() {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.ParentHash, previousBlock.Hash())
	}

	if previousBlock.Header.TimeStamp > 0 {
		evHandler("database: ValidateBlock: blk[%d]: check: timestamp is not before the parent block", b.Header.Number)

		parentTime := time.Unix(int64(previousBlock.Header.TimeStamp), 0)
		blockTime := time.Unix(int64(b.Header.TimeStamp), 0)
		if blockTime.Before(parentTime) {
			return fmt.Errorf("block timestamp is before parent block, parent %s, block %s", parentTime, blockTime)
		}
	}

	if b.Trans != nil {
		evHandler("database: ValidateBlock: blk[%d]: check: merkle root does match transactions", b.Header.Number)

		if b.Header.TransRoot != b.Trans.RootHex() {
			return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", b.Trans.RootHex(), b.Header.TransRoot)
		}
	}

	return nil
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs block data from a sealed block.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Transactions(),
	}

	return blockData
}

// ToBlock converts a storage block into a database block.
func ToBlock(blockData BlockData) (Block, error) {
	block, err := NewBlock(blockData.Header, blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	// The header carries the sealed trans root. NewBlock recomputed it, so
	// restore the sealed value and let validation catch any mismatch.
	block.Header.TransRoot = blockData.Header.TransRoot

	return block, nil
}
