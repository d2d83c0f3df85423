package database

// Receipt status values.
const (
	ReceiptStatusFailed  uint8 = 0
	ReceiptStatusSuccess uint8 = 1
)

// Log represents an event emitted by a contract during execution. Logs are
// produced only as a side effect of execution and are never mutated after
// creation.
type Log struct {
	AccountID   AccountID `json:"account"`      // The contract that emitted the log.
	Topics      []string  `json:"topics"`       // Ordered, indexed topics for filtering.
	Data        []byte    `json:"data"`         // Arbitrary payload attached to the log.
	BlockNumber uint64    `json:"block_number"` // The block the emitting transaction was sealed into.
	TxHash      string    `json:"tx_hash"`      // The transaction that emitted the log.
	Index       uint32    `json:"index"`        // Position of the log inside the block.
}

// Receipt represents the recorded outcome of executing one transaction.
// Receipts are immutable once created and owned by the block that included
// the transaction.
type Receipt struct {
	TxHash          string    `json:"tx_hash"`                    // Hash of the transaction this receipt belongs to.
	TxIndex         uint32    `json:"tx_index"`                   // Position of the transaction inside the block.
	BlockNumber     uint64    `json:"block_number"`               // The block the transaction was sealed into.
	BlockHash       string    `json:"block_hash"`                 // Hash of the block the transaction was sealed into.
	Status          uint8     `json:"status"`                     // Success or failure of the execution.
	GasUsed         uint64    `json:"gas_used"`                   // Amount of gas the execution consumed.
	ContractAddress AccountID `json:"contract_address,omitempty"` // Address of the created contract, if any.
	Logs            []Log     `json:"logs"`                       // Ordered logs emitted by the execution.
}
