package state

import (
	"context"
	"errors"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/execute"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// ErrNoTransactions is returned when a block is requested to be created and
// there are no executable transactions in the mempool.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock drains the best pending transactions from the mempool,
// executes them against the current state and seals them into the next block.
// Transactions that went stale while pending, because an earlier block or a
// replacement changed the sender's account, are dropped and never block the
// rest of the selection.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return database.Block{}, err
	}

	// Pick the best transactions within the block transaction and gas caps.
	trans := s.mempool.PickBest(int(s.genesis.TransPerBlock), s.genesis.BlockGasLimit)
	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: executing %d transactions", len(trans))

	latestBlock := s.db.LatestBlock()
	blockNumber := latestBlock.Header.Number + 1

	var executed []database.BlockTx
	var receipts []database.Receipt
	var gasUsed uint64

	for _, tx := range trans {

		// Selection happened against an older state. Re-validate so a stale
		// transaction is dropped instead of sealed.
		vtx, err := validate.Check(tx.SignedTx, s.genesis, s.db)
		if err != nil {
			s.evHandler("state: MineNewBlock: WARNING: drop stale tx[%s]: %s", tx, err)
			s.mempool.Delete(tx)
			continue
		}

		env := execute.Env{
			BlockNumber:   blockNumber,
			BeneficiaryID: s.beneficiaryID,
		}

		receipt, err := execute.Execute(s.db, vtx, env)
		if err != nil {
			return database.Block{}, err
		}

		gasUsed += receipt.GasUsed
		executed = append(executed, tx)
		receipts = append(receipts, receipt)
		s.mempool.Delete(tx)
	}

	if len(executed) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: sealing block %d with %d transactions", blockNumber, len(executed))

	block, err := s.sealBlock(latestBlock, executed, gasUsed, receipts)
	if err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// MineEmptyBlock seals a block with no transactions. The simulator allows
// requesting one explicitly to advance the chain without traffic.
func (s *State) MineEmptyBlock() (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return database.Block{}, err
	}

	return s.sealBlock(s.db.LatestBlock(), nil, 0, nil)
}

// =============================================================================

// sealBlock constructs the next block over the executed transactions,
// localizes the receipts to it and persists everything. Must be called with
// the mutex held.
func (s *State) sealBlock(latestBlock database.Block, trans []database.BlockTx, gasUsed uint64, receipts []database.Receipt) (database.Block, error) {
	header := database.BlockHeader{
		Number:        latestBlock.Header.Number + 1,
		ParentHash:    latestBlock.Hash(),
		TimeStamp:     uint64(s.clock.Now().Unix()),
		BeneficiaryID: s.beneficiaryID,
		StateRoot:     s.db.HashState(),
		GasUsed:       gasUsed,
		GasLimit:      s.genesis.BlockGasLimit,
	}

	block, err := database.NewBlock(header, trans)
	if err != nil {
		return database.Block{}, err
	}

	localizeReceipts(block, receipts)

	if err := s.db.WriteBlock(block, receipts); err != nil {
		return database.Block{}, err
	}

	s.evHandler("viewer: block sealed: number[%d] hash[%s] txs[%d]", block.Header.Number, block.Hash(), len(trans))

	return block, nil
}

// localizeReceipts stamps the sealed block onto its receipts and numbers the
// logs within the block.
func localizeReceipts(block database.Block, receipts []database.Receipt) {
	blockHash := block.Hash()

	var logIndex uint32
	for i := range receipts {
		receipts[i].BlockNumber = block.Header.Number
		receipts[i].BlockHash = blockHash
		receipts[i].TxIndex = uint32(i)

		for j := range receipts[i].Logs {
			receipts[i].Logs[j].BlockNumber = block.Header.Number
			receipts[i].Logs[j].Index = logIndex
			logIndex++
		}
	}
}
