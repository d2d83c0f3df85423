package state

import (
	"fmt"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/execute"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// SimulateTransaction executes the transaction against a throwaway copy of
// the current state and returns the receipt it would produce. Nothing is
// persisted and the mempool is not touched. The nonce check is relaxed so a
// caller can probe a transaction it has not finalized yet.
func (s *State) SimulateTransaction(signedTx database.SignedTx) (database.Receipt, error) {
	clone := s.db.Clone()

	vtx, err := validate.Check(signedTx, s.genesis, clone)
	if err != nil {
		kind, ok := validate.ErrorKind(err)
		if !ok || kind != validate.KindNonceMismatch {
			return database.Receipt{}, err
		}

		vtx, err = validate.CheckRelaxedNonce(signedTx, s.genesis, clone)
		if err != nil {
			return database.Receipt{}, err
		}
	}

	env := execute.Env{
		BlockNumber:   s.db.LatestBlock().Header.Number + 1,
		BeneficiaryID: s.beneficiaryID,
	}

	return execute.Execute(clone, vtx, env)
}

// EstimateGas reports the gas the transaction would consume. A transaction
// whose execution faults cannot be estimated; it would consume its entire
// gas limit regardless.
func (s *State) EstimateGas(signedTx database.SignedTx) (uint64, error) {
	receipt, err := s.SimulateTransaction(signedTx)
	if err != nil {
		return 0, err
	}

	if receipt.Status == database.ReceiptStatusFailed {
		return 0, fmt.Errorf("execution failed, gas cannot be estimated")
	}

	return receipt.GasUsed, nil
}
