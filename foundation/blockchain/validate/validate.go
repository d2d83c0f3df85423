// Package validate implements the pure transaction checks a transaction
// must pass before it is admitted into the mempool or sealed into a block.
package validate

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
)

// Gas constants for the intrinsic cost of a transaction before any
// contract code runs.
const (
	TxGas       uint64 = 21_000 // Base cost for any transaction.
	TxDataGas   uint64 = 16     // Cost per byte of payload.
	TxCreateGas uint64 = 32_000 // Surcharge for creating a contract.
)

// Kind identifies the category of a validation failure.
type Kind string

// The set of validation failure kinds.
const (
	KindInvalidSignature    Kind = "invalid_signature"
	KindNonceMismatch       Kind = "nonce_mismatch"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindGasTooLow           Kind = "gas_too_low"
	KindMalformed           Kind = "malformed"
	KindConflictingNonce    Kind = "conflicting_nonce"
)

// Error reports why a transaction failed validation. The mempool reuses
// this type for its conflicting nonce rejection so callers see one
// taxonomy.
type Error struct {
	Kind Kind
	Err  error
}

// NewError constructs a validation error of the specified kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap exposes the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the validation failure kind from an error. The second
// return is false when the error is not a validation error.
func ErrorKind(err error) (Kind, bool) {
	var ve *Error
	if !errors.As(err, &ve) {
		return "", false
	}
	return ve.Kind, true
}

// =============================================================================

// ValidatedTx is a transaction that passed validation along with the
// sender recovered from its signature.
type ValidatedTx struct {
	Tx     database.SignedTx
	FromID database.AccountID
}

// Check performs the semantic validation of the transaction against the
// current state. The checks run in order and fail fast on the first
// violation: structure and gas bounds, signature, exact nonce, balance,
// intrinsic cost. Check is pure: it never mutates the database.
func Check(tx database.SignedTx, gen genesis.Genesis, db *database.Database) (ValidatedTx, error) {
	vtx, err := checkWellFormed(tx, gen)
	if err != nil {
		return ValidatedTx{}, err
	}

	// The sender account defaults to a zero balance, zero nonce account if
	// it has never been written to.
	account := db.GetAccount(vtx.FromID)

	// The nonce must equal the account's current nonce exactly. A gap in
	// either direction is a mismatch.
	if tx.Nonce != account.Nonce {
		return ValidatedTx{}, NewError(KindNonceMismatch, "nonce mismatch, got %d, exp %d", tx.Nonce, account.Nonce)
	}

	if err := checkFunding(tx, account); err != nil {
		return ValidatedTx{}, err
	}

	return vtx, nil
}

// CheckRelaxedNonce performs every Check validation except the exact nonce
// comparison. Callers that track nonces beyond the settled state, like the
// mempool admission path extending a pending run or a simulation probing an
// unfinalized transaction, use it so the economic checks still apply.
func CheckRelaxedNonce(tx database.SignedTx, gen genesis.Genesis, db *database.Database) (ValidatedTx, error) {
	vtx, err := checkWellFormed(tx, gen)
	if err != nil {
		return ValidatedTx{}, err
	}

	if err := checkFunding(tx, db.GetAccount(vtx.FromID)); err != nil {
		return ValidatedTx{}, err
	}

	return vtx, nil
}

// checkWellFormed runs the state independent checks: transaction structure,
// gas bounds against the chain parameters and sender recovery.
func checkWellFormed(tx database.SignedTx, gen genesis.Genesis) (ValidatedTx, error) {

	// Structural checks first. A transaction that isn't well formed can't
	// be attributed to a sender.
	if err := tx.Validate(gen.ChainID); err != nil {
		return ValidatedTx{}, NewError(KindMalformed, "malformed transaction: %w", err)
	}

	// A transaction asking for more gas than a block can hold could never
	// be sealed and would squat in the mempool until eviction.
	if tx.GasLimit > gen.BlockGasLimit {
		return ValidatedTx{}, NewError(KindMalformed, "gas limit %d exceeds the block gas limit %d", tx.GasLimit, gen.BlockGasLimit)
	}

	if tx.GasPrice < gen.MinGasPrice {
		return ValidatedTx{}, NewError(KindGasTooLow, "gas price %d is below the node minimum %d", tx.GasPrice, gen.MinGasPrice)
	}

	// The signature must recover a sender. Extraction failure means the
	// signature does not verify against the transaction data.
	fromID, err := tx.FromAccount()
	if err != nil {
		return ValidatedTx{}, NewError(KindInvalidSignature, "signature recovery failed: %w", err)
	}

	return ValidatedTx{Tx: tx, FromID: fromID}, nil
}

// checkFunding verifies the sender can cover the worst case cost and that
// the gas limit covers the intrinsic cost of the transaction.
func checkFunding(tx database.SignedTx, account database.Account) error {

	// The sender must be able to cover the value plus the worst case fee.
	// A cost that wraps uint64 can never be covered by any balance.
	cost, ok := Cost(tx.Tx)
	if !ok {
		return NewError(KindInsufficientBalance, "cost overflows, value %d, gas limit %d, gas price %d", tx.Value, tx.GasLimit, tx.GasPrice)
	}
	if account.Balance < cost {
		return NewError(KindInsufficientBalance, "insufficient balance, bal %d, needed %d", account.Balance, cost)
	}

	// The gas limit must cover at least the intrinsic cost of the
	// transaction for its payload size and operation type.
	intrinsic := IntrinsicGas(tx.Tx)
	if tx.GasLimit < intrinsic {
		return NewError(KindGasTooLow, "gas limit %d is below the intrinsic cost %d", tx.GasLimit, intrinsic)
	}

	return nil
}

// Cost returns the worst case cost of the transaction: its value plus the
// fee at the full gas limit. The second return is false when the cost does
// not fit in a uint64.
func Cost(tx database.Tx) (uint64, bool) {
	hi, fee := bits.Mul64(tx.GasLimit, tx.GasPrice)
	if hi != 0 {
		return 0, false
	}

	cost, carry := bits.Add64(tx.Value, fee, 0)
	if carry != 0 {
		return 0, false
	}

	return cost, true
}

// IntrinsicGas returns the minimum amount of gas a transaction consumes
// before any contract code runs.
func IntrinsicGas(tx database.Tx) uint64 {
	gas := TxGas + uint64(len(tx.Data))*TxDataGas
	if tx.IsCreate() {
		gas += TxCreateGas
	}

	return gas
}
