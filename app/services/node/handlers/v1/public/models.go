package public

import "github.com/simchain/simchain/foundation/blockchain/database"

// tx is the view model for a transaction in API responses.
type tx struct {
	FromAccount database.AccountID `json:"from"`
	FromName    string             `json:"from_name"`
	To          database.AccountID `json:"to"`
	ToName      string             `json:"to_name"`
	Nonce       uint64             `json:"nonce"`
	Value       uint64             `json:"value"`
	GasLimit    uint64             `json:"gas_limit"`
	GasPrice    uint64             `json:"gas_price"`
	Data        []byte             `json:"data"`
	TimeStamp   uint64             `json:"timestamp"`
	Sig         string             `json:"sig"`
}

// info is the view model for an account in API responses.
type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
	HasCode bool               `json:"has_code"`
}

// actInfo wraps the account set with chain context.
type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}

// block is the view model for a sealed block in API responses.
type block struct {
	Number      uint64             `json:"number"`
	Hash        string             `json:"hash"`
	ParentHash  string             `json:"parent_hash"`
	TimeStamp   uint64             `json:"timestamp"`
	Beneficiary database.AccountID `json:"beneficiary"`
	StateRoot   string             `json:"state_root"`
	TransRoot   string             `json:"trans_root"`
	GasUsed     uint64             `json:"gas_used"`
	GasLimit    uint64             `json:"block_gas_limit"`
	Trans       []tx               `json:"trans"`
}

// logFilter is the request model for querying logs.
type logFilter struct {
	FromBlock uint64   `json:"from_block"`
	ToBlock   uint64   `json:"to_block"`
	Account   string   `json:"account"`
	Topics    []string `json:"topics"`
}
