package database

// journalEntry represents one reversible delta applied to the accounts.
// Entries are undone in reverse order on a snapshot revert.
type journalEntry interface {
	revert(db *Database)
}

// createAccount records that an account was materialized for the first time.
type createAccount struct {
	accountID AccountID
}

func (j createAccount) revert(db *Database) {
	delete(db.accounts, j.accountID)
}

// balanceChange records the balance before a credit or debit.
type balanceChange struct {
	accountID AccountID
	prev      uint64
}

func (j balanceChange) revert(db *Database) {
	account := db.accounts[j.accountID]
	account.Balance = j.prev
	db.accounts[j.accountID] = account
}

// nonceChange records the nonce before an increment.
type nonceChange struct {
	accountID AccountID
	prev      uint64
}

func (j nonceChange) revert(db *Database) {
	account := db.accounts[j.accountID]
	account.Nonce = j.prev
	db.accounts[j.accountID] = account
}

// storageChange records the previous value under a storage key.
type storageChange struct {
	accountID AccountID
	key       string
	prev      string
	existed   bool
}

func (j storageChange) revert(db *Database) {
	account := db.accounts[j.accountID]
	if j.existed {
		account.Storage[j.key] = j.prev
	} else {
		delete(account.Storage, j.key)
	}
	db.accounts[j.accountID] = account
}

// codeChange records the contract code before it was replaced.
type codeChange struct {
	accountID AccountID
	prev      []byte
}

func (j codeChange) revert(db *Database) {
	account := db.accounts[j.accountID]
	account.Code = j.prev
	db.accounts[j.accountID] = account
}
