package state

import (
	"math"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveMempool returns the pending transactions in selection order.
func (s *State) RetrieveMempool() []database.BlockTx {
	return s.mempool.PickBest(-1, math.MaxUint64)
}

// RetrieveBeneficiaryID returns the account receiving the gas fees for the
// blocks this node seals.
func (s *State) RetrieveBeneficiaryID() database.AccountID {
	return s.beneficiaryID
}
