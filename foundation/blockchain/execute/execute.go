// Package execute applies validated transactions to the account database,
// producing receipts and logs. Execution is deterministic: identical prior
// state and an identical transaction always yield an identical receipt and
// identical resulting state.
package execute

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/validate"
	"github.com/simchain/simchain/foundation/blockchain/vm"
)

// Env carries the block environment a transaction executes under.
type Env struct {
	BlockNumber   uint64
	BeneficiaryID database.AccountID
}

// Execute applies one validated transaction to the database. The worst
// case fee is deducted upfront and the sender nonce is incremented
// unconditionally, even when the contract run faults, so a nonce can never
// be reused. A fault discards every storage write and log of the run but
// the gas already consumed is not refunded.
//
// The returned error is reserved for the upfront debit failing, which
// means the caller admitted a transaction that no longer covers its worst
// case cost. Everything else, including execution faults, is reported
// through the receipt.
func Execute(db *database.Database, vtx validate.ValidatedTx, env Env) (database.Receipt, error) {
	tx := vtx.Tx
	fromID := vtx.FromID
	txHash := tx.HashString()

	// Deduct the worst case fee before anything runs. A fee that wraps
	// uint64 would corrupt the accounting, so it is refused outright even
	// though validation already rejects it.
	hi, fee := bits.Mul64(tx.GasLimit, tx.GasPrice)
	if hi != 0 {
		return database.Receipt{}, fmt.Errorf("fee overflows, gas limit %d, gas price %d", tx.GasLimit, tx.GasPrice)
	}
	if err := db.SubBalance(fromID, fee); err != nil {
		return database.Receipt{}, fmt.Errorf("upfront fee debit: %w", err)
	}

	// The nonce increment stands regardless of what execution does.
	db.IncrementNonce(fromID)

	// Everything from here is reverted as a unit on a fault.
	snapshot := db.Snapshot()

	intrinsic := validate.IntrinsicGas(tx.Tx)
	gasUsed := intrinsic
	receipt := database.Receipt{
		TxHash:      txHash,
		BlockNumber: env.BlockNumber,
		Status:      database.ReceiptStatusSuccess,
	}

	var runErr error

	switch {
	case tx.IsCreate():
		contractID := CreateContractAddress(fromID, tx.Nonce)

		if runErr = db.SubBalance(fromID, tx.Value); runErr == nil {
			db.AddBalance(contractID, tx.Value)
			db.SetCode(contractID, tx.Data)

			var result vm.Result
			result, runErr = vm.Run(tx.Data, vm.Context{ContractID: contractID, GasBudget: tx.GasLimit - intrinsic}, db)
			gasUsed += result.GasUsed
			if runErr == nil {
				receipt.ContractAddress = contractID
				receipt.Logs = localize(result.Logs, txHash)
			}
		}

	default:
		code := db.GetCode(tx.ToID)

		if runErr = db.SubBalance(fromID, tx.Value); runErr == nil {
			db.AddBalance(tx.ToID, tx.Value)

			// A recipient without code makes this a plain transfer.
			if len(code) > 0 {
				var result vm.Result
				result, runErr = vm.Run(code, vm.Context{ContractID: tx.ToID, GasBudget: tx.GasLimit - intrinsic}, db)
				gasUsed += result.GasUsed
				if runErr == nil {
					receipt.Logs = localize(result.Logs, txHash)
				}
			}
		}
	}

	if runErr != nil {
		// Atomic rollback of the faulted run. The fee debit and nonce
		// increment happened before the snapshot and stand. A failed
		// execution consumes the full gas limit.
		if err := db.RevertToSnapshot(snapshot); err != nil {
			return database.Receipt{}, fmt.Errorf("reverting faulted execution: %w", err)
		}

		receipt.Status = database.ReceiptStatusFailed
		receipt.GasUsed = tx.GasLimit
		receipt.Logs = nil

		db.AddBalance(env.BeneficiaryID, fee)

		return receipt, nil
	}

	// Refund the gas that was not consumed and pay the beneficiary.
	receipt.GasUsed = gasUsed
	db.AddBalance(fromID, (tx.GasLimit-gasUsed)*tx.GasPrice)
	db.AddBalance(env.BeneficiaryID, gasUsed*tx.GasPrice)

	return receipt, nil
}

// localize stamps the emitting transaction onto the logs produced by a run.
func localize(logs []database.Log, txHash string) []database.Log {
	for i := range logs {
		logs[i].TxHash = txHash
	}

	return logs
}

// CreateContractAddress derives the address of a contract created by the
// specified sender at the specified nonce.
func CreateContractAddress(fromID database.AccountID, nonce uint64) database.AccountID {
	addr := common.HexToAddress(strings.ToLower(string(fromID)))
	contractAddr := crypto.CreateAddress(addr, nonce)

	return database.AccountID(contractAddr.String())
}
