package state

import (
	"math"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/execute"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// QueryLatest represents a query for the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryAccount returns a copy of the account as of the latest sealed block.
func (s *State) QueryAccount(accountID database.AccountID) database.Account {
	return s.db.GetAccount(accountID)
}

// QueryAccountPending returns the account as it would look if every pending
// transaction were sealed right now.
func (s *State) QueryAccountPending(accountID database.AccountID) database.Account {
	return s.pendingView().GetAccount(accountID)
}

// QueryAccounts returns a copy of every account known to the database.
func (s *State) QueryAccounts() map[database.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// QueryStorage returns the value stored under the specified key for the
// specified contract as of the latest sealed block.
func (s *State) QueryStorage(accountID database.AccountID, key string) string {
	return s.db.GetStorage(accountID, key)
}

// QueryCode returns the contract code installed on the specified account.
func (s *State) QueryCode(accountID database.AccountID) []byte {
	return s.db.GetCode(accountID)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// =============================================================================

// QueryBlocksByNumber returns the set of blocks for the specified range of
// block numbers, inclusive on both ends.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.LatestBlock().Header.Number
		to = from
	}
	if to == QueryLatest {
		to = s.db.LatestBlock().Header.Number
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlockByNumber(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.GetBlockByHash(hash)
}

// QueryTransaction returns the sealed transaction with the specified hash.
func (s *State) QueryTransaction(txHash string) (database.BlockTx, error) {
	return s.db.GetTx(txHash)
}

// QueryReceipt returns the receipt recorded for the specified transaction.
func (s *State) QueryReceipt(txHash string) (database.Receipt, error) {
	return s.db.GetReceipt(txHash)
}

// =============================================================================

// LogFilter selects logs by block range, emitting contract and topics. Zero
// values match everything; Topics match positionally with "" as a wildcard.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	AccountID database.AccountID
	Topics    []string
}

// QueryLogs returns the logs matching the filter, ordered by block number
// and log index.
func (s *State) QueryLogs(filter LogFilter) []database.Log {
	toBlock := filter.ToBlock
	if toBlock == 0 || toBlock == QueryLatest {
		toBlock = s.db.LatestBlock().Header.Number
	}

	var out []database.Log

	for _, block := range s.db.ForEachBlock() {
		if block.Header.Number < filter.FromBlock || block.Header.Number > toBlock {
			continue
		}

		for _, tx := range block.Transactions() {
			receipt, err := s.db.GetReceipt(tx.HashString())
			if err != nil {
				continue
			}

			for _, log := range receipt.Logs {
				if matchLog(log, filter) {
					out = append(out, log)
				}
			}
		}
	}

	return out
}

// matchLog applies the account and topic criteria to a single log.
func matchLog(log database.Log, filter LogFilter) bool {
	if filter.AccountID != "" && log.AccountID != filter.AccountID {
		return false
	}

	if len(filter.Topics) > len(log.Topics) {
		return false
	}
	for i, topic := range filter.Topics {
		if topic != "" && log.Topics[i] != topic {
			return false
		}
	}

	return true
}

// =============================================================================

// pendingView clones the settled state and applies every pending transaction
// to it. Pending transactions that no longer validate are skipped, matching
// what a mining cycle would do with them.
func (s *State) pendingView() *database.Database {
	clone := s.db.Clone()
	blockNumber := s.db.LatestBlock().Header.Number + 1

	for _, tx := range s.mempool.PickBest(-1, math.MaxUint64) {
		vtx, err := validate.Check(tx.SignedTx, s.genesis, clone)
		if err != nil {
			continue
		}

		env := execute.Env{
			BlockNumber:   blockNumber,
			BeneficiaryID: s.beneficiaryID,
		}
		if _, err := execute.Execute(clone, vtx, env); err != nil {
			continue
		}
	}

	return clone
}
