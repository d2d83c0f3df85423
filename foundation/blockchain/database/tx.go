package database

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/simchain/simchain/foundation/blockchain/signature"
)

// =============================================================================

// Tx is the transactional information between two parties. A transaction
// with an empty ToID creates a new contract from the payload.
type Tx struct {
	ChainID  uint16    `json:"chain_id"`  // The chain id declared by the sender to prevent cross-chain replay.
	Nonce    uint64    `json:"nonce"`     // Sequence number for the sending account. Must match the account's current nonce exactly.
	ToID     AccountID `json:"to"`        // Account receiving the benefit of the transaction. Empty for contract creation.
	Value    uint64    `json:"value"`     // Monetary value transferred by this transaction.
	GasLimit uint64    `json:"gas_limit"` // Maximum amount of gas the sender is willing to consume.
	GasPrice uint64    `json:"gas_price"` // Price the sender pays for each unit of gas.
	Data     []byte    `json:"data"`      // Contract code on creation, call input otherwise.
}

// NewTx constructs a new transaction.
func NewTx(chainID uint16, nonce uint64, toID AccountID, value uint64, gasLimit uint64, gasPrice uint64, data []byte) (Tx, error) {
	if toID != "" && !toID.IsAccountID() {
		return Tx{}, fmt.Errorf("to account is not properly formatted")
	}
	if toID == "" && len(data) == 0 {
		return Tx{}, fmt.Errorf("contract creation requires a payload")
	}

	tx := Tx{
		ChainID:  chainID,
		Nonce:    nonce,
		ToID:     toID,
		Value:    value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}

	return tx, nil
}

// IsCreate returns true when the transaction creates a contract.
func (tx Tx) IsCreate() bool {
	return tx.ToID == ""
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// Sign the transaction with the private key to produce a signature.
	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	// Construct the signed transaction by adding the signature
	// in the [R|S|V] format.
	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	V *big.Int `json:"v"` // Recovery identifier, either 31 or 32 with simchainID.
	R *big.Int `json:"r"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Second coordinate of the ECDSA signature.
}

// Validate verifies the transaction has a proper signature that conforms to
// our standards. It also checks the format of the to account and that the
// transaction is bound to the specified chain.
func (tx SignedTx) Validate(chainID uint16) error {
	if tx.ChainID != chainID {
		return fmt.Errorf("transaction is for chain id %d, this chain is %d", tx.ChainID, chainID)
	}

	if !tx.IsCreate() && !tx.ToID.IsAccountID() {
		return errors.New("invalid account for to account")
	}

	if tx.IsCreate() && len(tx.Data) == 0 {
		return errors.New("contract creation requires a payload")
	}

	if err := signature.VerifySignature(tx.V, tx.R, tx.S); err != nil {
		return err
	}

	return nil
}

// HashString returns the unique hash of the signed transaction as a hex
// encoded string.
func (tx SignedTx) HashString() string {
	return signature.Hash(tx)
}

// FromAccount extracts the account id that signed the transaction.
func (tx SignedTx) FromAccount() (AccountID, error) {
	address, err := signature.FromAddress(tx.Tx, tx.V, tx.R, tx.S)
	return AccountID(address), err
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	from, err := tx.FromAccount()
	if err != nil {
		from = "unknown"
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}

// =============================================================================

// BlockTx represents the transaction as it's admitted into the mempool and
// recorded inside a block. The timestamp marks the time of admission and is
// only used for age based eviction. It is deliberately excluded from the
// transaction hash so replays stay deterministic.
type BlockTx struct {
	SignedTx
	TimeStamp uint64 `json:"timestamp"` // The time the transaction was admitted into the mempool.
}

// NewBlockTx constructs a new block transaction.
func NewBlockTx(signedTx SignedTx, timeStamp uint64) BlockTx {
	return BlockTx{
		SignedTx:  signedTx,
		TimeStamp: timeStamp,
	}
}

// Hash implements the merkle Hashable interface for providing a hash
// of a block transaction.
func (tx BlockTx) Hash() ([]byte, error) {
	str := signature.Hash(tx.SignedTx)
	return hex.DecodeString(str[2:])
}

// HashString returns the transaction hash as a hex encoded string.
func (tx BlockTx) HashString() string {
	return signature.Hash(tx.SignedTx)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two block transactions. If the nonce and signatures are the
// same, the two transactions are the same.
func (tx BlockTx) Equals(otherTx BlockTx) bool {
	txSig := signature.ToSignatureBytes(tx.V, tx.R, tx.S)
	otherTxSig := signature.ToSignatureBytes(otherTx.V, otherTx.R, otherTx.S)

	return tx.Nonce == otherTx.Nonce && bytes.Equal(txSig, otherTxSig)
}
