package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/database/storage"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
	"github.com/simchain/simchain/foundation/blockchain/mempool/selector"
	"github.com/simchain/simchain/foundation/blockchain/state"
	"github.com/simchain/simchain/foundation/blockchain/validate"
	"github.com/simchain/simchain/foundation/blockchain/vm"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var keys = map[string]string{
	"pavel": "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959",
	"bill":  "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93",
	"miner": "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0",
}

const (
	chainID     = uint16(1)
	minGasPrice = uint64(1)
	toID        = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

// fixedClock pins block timestamps so runs are reproducible.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func privateKey(t *testing.T, owner string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(keys[owner])
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the %s private key: %v", failed, owner, err)
	}
	return pk
}

func accountID(t *testing.T, owner string) database.AccountID {
	return database.PublicKeyToAccountID(privateKey(t, owner).PublicKey)
}

func newGenesis(t *testing.T) genesis.Genesis {
	return genesis.Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       chainID,
		TransPerBlock: 10,
		BlockGasLimit: 600_000,
		MinGasPrice:   minGasPrice,
		Balances: map[string]uint64{
			string(accountID(t, "pavel")): 1_000_000,
			string(accountID(t, "bill")):  1_000_000,
		},
	}
}

func newState(t *testing.T, strg database.Storage, clock state.Clock) *state.State {
	st, err := state.New(state.Config{
		BeneficiaryID:  accountID(t, "miner"),
		Genesis:        newGenesis(t),
		Storage:        strg,
		SelectStrategy: selector.StrategyPrice,
		Clock:          clock,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func submit(t *testing.T, st *state.State, owner string, nonce uint64, to database.AccountID, value uint64, gasLimit uint64, gasPrice uint64, data []byte) database.SignedTx {
	tx, err := database.NewTx(chainID, nonce, to, value, gasLimit, gasPrice, data)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(privateKey(t, owner))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	if err := st.SubmitWalletTransaction(signedTx); err != nil {
		t.Fatalf("\t%s\tShould be able to submit the transaction: %v", failed, err)
	}

	return signedTx
}

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to bring up a node over empty storage.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		latest := st.RetrieveLatestBlock()
		if latest.Header.Number != 0 {
			t.Fatalf("\t%s\tShould seal the genesis block, got number %d.", failed, latest.Header.Number)
		}
		t.Logf("\t%s\tShould seal the genesis block.", success)

		if bal := st.QueryAccount(accountID(t, "pavel")).Balance; bal != 1_000_000 {
			t.Fatalf("\t%s\tShould fund the genesis accounts, got %d.", failed, bal)
		}
		t.Logf("\t%s\tShould fund the genesis accounts.", success)

		if st.Consistency() != nil {
			t.Fatalf("\t%s\tShould come up consistent: %v", failed, st.Consistency())
		}
		t.Logf("\t%s\tShould come up consistent.", success)
	}
}

func Test_LifeCycle(t *testing.T) {
	t.Log("Given the need to submit, mine and settle transactions.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		tx1 := submit(t, st, "pavel", 0, toID, 1000, 25_000, 1, nil)
		tx2 := submit(t, st, "pavel", 1, toID, 1000, 25_000, 1, nil)
		tx3 := submit(t, st, "bill", 0, toID, 500, 25_000, 1, nil)
		t.Logf("\t%s\tShould admit 3 transactions.", success)

		if n := st.QueryMempoolLength(); n != 3 {
			t.Fatalf("\t%s\tShould count 3 pending transactions, got %d.", failed, n)
		}

		// The pending view reflects what mining would settle.
		pending := st.QueryAccountPending(accountID(t, "pavel"))
		if pending.Nonce != 2 {
			t.Fatalf("\t%s\tShould show the pending nonce, got %d.", failed, pending.Nonce)
		}
		t.Logf("\t%s\tShould show the pending view of an account.", success)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if block.Header.Number != 1 || len(block.Transactions()) != 3 {
			t.Fatalf("\t%s\tShould seal all 3 transactions into block 1.", failed)
		}
		t.Logf("\t%s\tShould seal all 3 transactions into block 1.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould drain the mempool.", failed)
		}
		t.Logf("\t%s\tShould drain the mempool.", success)

		fee := uint64(21_000)
		if bal := st.QueryAccount(accountID(t, "pavel")).Balance; bal != 1_000_000-2*(1000+fee) {
			t.Fatalf("\t%s\tShould settle pavel's balance, got %d.", failed, bal)
		}
		if bal := st.QueryAccount(accountID(t, "bill")).Balance; bal != 1_000_000-500-fee {
			t.Fatalf("\t%s\tShould settle bill's balance, got %d.", failed, bal)
		}
		if bal := st.QueryAccount(toID).Balance; bal != 2500 {
			t.Fatalf("\t%s\tShould settle the recipient's balance, got %d.", failed, bal)
		}
		if bal := st.QueryAccount(accountID(t, "miner")).Balance; bal != 3*fee {
			t.Fatalf("\t%s\tShould pay the fees to the beneficiary, got %d.", failed, bal)
		}
		t.Logf("\t%s\tShould settle every balance.", success)

		if nonce := st.QueryAccount(accountID(t, "pavel")).Nonce; nonce != 2 {
			t.Fatalf("\t%s\tShould settle pavel's nonce, got %d.", failed, nonce)
		}
		t.Logf("\t%s\tShould settle the nonces.", success)

		for i, signedTx := range []database.SignedTx{tx1, tx2, tx3} {
			receipt, err := st.QueryReceipt(signedTx.HashString())
			if err != nil {
				t.Fatalf("\t%s\tShould record a receipt for tx %d: %v", failed, i, err)
			}
			if receipt.Status != database.ReceiptStatusSuccess || receipt.BlockNumber != 1 {
				t.Fatalf("\t%s\tShould localize the receipt to block 1.", failed)
			}
		}
		t.Logf("\t%s\tShould record a localized receipt per transaction.", success)

		if _, err := st.QueryTransaction(tx1.HashString()); err != nil {
			t.Fatalf("\t%s\tShould find a sealed transaction by hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould find a sealed transaction by hash.", success)

		blocks := st.QueryBlocksByNumber(0, state.QueryLatest)
		if len(blocks) != 2 {
			t.Fatalf("\t%s\tShould list both blocks, got %d.", failed, len(blocks))
		}
		t.Logf("\t%s\tShould list both blocks.", success)
	}
}

func Test_MineEmptyBlock(t *testing.T) {
	t.Log("Given the need to advance the chain without traffic.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould refuse to mine an empty mempool, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould refuse to mine an empty mempool.", success)

		block, err := st.MineEmptyBlock()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine an empty block: %v", failed, err)
		}
		if block.Header.Number != 1 || len(block.Transactions()) != 0 {
			t.Fatalf("\t%s\tShould seal an empty block 1.", failed)
		}
		t.Logf("\t%s\tShould be able to mine an empty block.", success)
	}
}

func Test_NonceAdmission(t *testing.T) {
	t.Log("Given the need to admit nonces against the pending view.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		// A nonce with a gap ahead of the run is rejected.
		tx, err := database.NewTx(chainID, 2, toID, 100, 25_000, 1, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		signedTx, err := tx.Sign(privateKey(t, "pavel"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
		}

		err = st.SubmitWalletTransaction(signedTx)
		if kind, ok := validate.ErrorKind(err); !ok || kind != validate.KindNonceMismatch {
			t.Fatalf("\t%s\tShould reject a gapped nonce, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a gapped nonce.", success)

		// Contiguous nonces extend the pending run.
		submit(t, st, "pavel", 0, toID, 100, 25_000, 1, nil)
		submit(t, st, "pavel", 1, toID, 100, 25_000, 1, nil)
		submit(t, st, "pavel", 2, toID, 100, 25_000, 1, nil)
		t.Logf("\t%s\tShould extend a contiguous pending run.", success)

		// A pending nonce can be replaced only by paying more.
		replacement, err := database.NewTx(chainID, 1, toID, 100, 25_000, 1, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		signedReplacement, err := replacement.Sign(privateKey(t, "pavel"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
		}

		err = st.SubmitWalletTransaction(signedReplacement)
		if kind, ok := validate.ErrorKind(err); !ok || kind != validate.KindConflictingNonce {
			t.Fatalf("\t%s\tShould reject a same price replacement, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a same price replacement.", success)

		submit(t, st, "pavel", 1, toID, 100, 25_000, 2, nil)
		if n := st.QueryMempoolLength(); n != 3 {
			t.Fatalf("\t%s\tShould keep 3 pending after a replacement, got %d.", failed, n)
		}
		t.Logf("\t%s\tShould accept a higher priced replacement.", success)
	}
}

func Test_FailedContract(t *testing.T) {
	t.Log("Given the need to seal a faulting transaction with a failed receipt.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		code := vm.NewProgram().Revert().Bytes()
		const gasLimit = uint64(100_000)

		signedTx := submit(t, st, "pavel", 0, "", 0, gasLimit, 1, code)

		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine the block.", success)

		receipt, err := st.QueryReceipt(signedTx.HashString())
		if err != nil {
			t.Fatalf("\t%s\tShould record a receipt: %v", failed, err)
		}

		if receipt.Status != database.ReceiptStatusFailed {
			t.Fatalf("\t%s\tShould record a failed receipt, got status %d.", failed, receipt.Status)
		}
		t.Logf("\t%s\tShould record a failed receipt.", success)

		if receipt.GasUsed != gasLimit {
			t.Fatalf("\t%s\tShould consume the full gas limit, got %d.", failed, receipt.GasUsed)
		}
		t.Logf("\t%s\tShould consume the full gas limit.", success)

		if bal := st.QueryAccount(accountID(t, "pavel")).Balance; bal != 1_000_000-gasLimit {
			t.Fatalf("\t%s\tShould keep the full fee debit, got %d.", failed, bal)
		}
		t.Logf("\t%s\tShould keep the full fee debit.", success)
	}
}

func Test_LogsAndSimulation(t *testing.T) {
	t.Log("Given the need to query logs and probe transactions.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		code := vm.NewProgram().
			Log([][]byte{{0xaa}}, []byte("deployed")).
			Halt().
			Bytes()

		submit(t, st, "pavel", 0, "", 0, 100_000, 1, code)

		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the block: %v", failed, err)
		}

		logs := st.QueryLogs(state.LogFilter{FromBlock: 0, ToBlock: state.QueryLatest})
		if len(logs) != 1 || string(logs[0].Data) != "deployed" {
			t.Fatalf("\t%s\tShould find the constructor log, got %d logs.", failed, len(logs))
		}
		t.Logf("\t%s\tShould find the constructor log.", success)

		if logs := st.QueryLogs(state.LogFilter{AccountID: "0x0000000000000000000000000000000000000000"}); len(logs) != 0 {
			t.Fatalf("\t%s\tShould filter logs by account.", failed)
		}
		t.Logf("\t%s\tShould filter logs by account.", success)

		// Simulation never touches the chain or the mempool.
		probe, err := database.NewTx(chainID, 99, toID, 100, 25_000, 1, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a probe: %v", failed, err)
		}
		signedProbe, err := probe.Sign(privateKey(t, "bill"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the probe: %v", failed, err)
		}

		gas, err := st.EstimateGas(signedProbe)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to estimate gas: %v", failed, err)
		}
		if gas != validate.TxGas {
			t.Fatalf("\t%s\tShould estimate the intrinsic gas, got %d.", failed, gas)
		}
		t.Logf("\t%s\tShould estimate gas with a relaxed nonce.", success)

		if bal := st.QueryAccount(accountID(t, "bill")).Balance; bal != 1_000_000 {
			t.Fatalf("\t%s\tShould leave the chain untouched by simulation, got %d.", failed, bal)
		}
		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould leave the mempool untouched by simulation.", failed)
		}
		t.Logf("\t%s\tShould leave the node untouched by simulation.", success)

		// A faulting probe cannot be estimated.
		trap, err := database.NewTx(chainID, 1, "", 0, 100_000, 1, vm.NewProgram().Revert().Bytes())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a trapping probe: %v", failed, err)
		}
		signedTrap, err := trap.Sign(privateKey(t, "pavel"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the trapping probe: %v", failed, err)
		}

		if _, err := st.EstimateGas(signedTrap); err == nil {
			t.Fatalf("\t%s\tShould refuse to estimate a faulting transaction.", failed)
		}
		t.Logf("\t%s\tShould refuse to estimate a faulting transaction.", success)
	}
}

func Test_RestartReplay(t *testing.T) {
	t.Log("Given the need to rebuild identical state from sealed blocks.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}

		st1 := newState(t, strg, &clock)

		submit(t, st1, "pavel", 0, toID, 1000, 25_000, 1, nil)
		submit(t, st1, "bill", 0, toID, 500, 25_000, 1, nil)
		if _, err := st1.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the first block: %v", failed, err)
		}

		clock.now = clock.now.Add(time.Minute)
		submit(t, st1, "pavel", 1, toID, 1000, 25_000, 1, nil)
		if _, err := st1.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the second block: %v", failed, err)
		}

		root1 := st1.RetrieveLatestBlock().Header.StateRoot
		st1.Shutdown()

		// A second node over the same storage must replay to the same state.
		st2 := newState(t, strg, &clock)
		defer st2.Shutdown()

		if st2.Consistency() != nil {
			t.Fatalf("\t%s\tShould replay cleanly: %v", failed, st2.Consistency())
		}
		t.Logf("\t%s\tShould replay cleanly.", success)

		if st2.RetrieveLatestBlock().Header.StateRoot != root1 {
			t.Fatalf("\t%s\tShould reproduce the same state root.", failed)
		}
		t.Logf("\t%s\tShould reproduce the same state root.", success)

		for _, owner := range []string{"pavel", "bill"} {
			if st1.QueryAccount(accountID(t, owner)).Balance != st2.QueryAccount(accountID(t, owner)).Balance {
				t.Fatalf("\t%s\tShould reproduce the %s balance.", failed, owner)
			}
		}
		t.Logf("\t%s\tShould reproduce every balance.", success)

		if len(st2.QueryBlocksByNumber(0, state.QueryLatest)) != 3 {
			t.Fatalf("\t%s\tShould index every replayed block.", failed)
		}
		t.Logf("\t%s\tShould index every replayed block.", success)
	}
}

func Test_PoisonedNode(t *testing.T) {
	t.Log("Given the need to refuse mutation on an inconsistent chain.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}

		st1 := newState(t, strg, &clock)
		submit(t, st1, "pavel", 0, toID, 1000, 25_000, 1, nil)
		block1, err := st1.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the first block: %v", failed, err)
		}
		st1.Shutdown()

		// Append a block whose recorded state root does not match what its
		// transactions produce.
		badTx, err := database.NewTx(chainID, 0, toID, 500, 25_000, 1, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		signedBadTx, err := badTx.Sign(privateKey(t, "bill"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
		}

		header := database.BlockHeader{
			Number:        2,
			ParentHash:    block1.Hash(),
			TimeStamp:     block1.Header.TimeStamp + 1,
			BeneficiaryID: accountID(t, "miner"),
			StateRoot:     "0x00000000000000000000000000000000000000000000000000000000deadbeef",
			GasLimit:      600_000,
		}
		badBlock, err := database.NewBlock(header, []database.BlockTx{database.NewBlockTx(signedBadTx, 0)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the bad block: %v", failed, err)
		}
		if err := strg.Write(database.NewBlockData(badBlock)); err != nil {
			t.Fatalf("\t%s\tShould be able to tamper the storage: %v", failed, err)
		}

		st2 := newState(t, strg, &clock)
		defer st2.Shutdown()

		if st2.Consistency() == nil {
			t.Fatalf("\t%s\tShould come up poisoned.", failed)
		}
		t.Logf("\t%s\tShould come up poisoned.", success)

		var ce *state.ConsistencyError
		if !errors.As(st2.Consistency(), &ce) || ce.BlockNumber != 2 {
			t.Fatalf("\t%s\tShould report the inconsistent block, got %v.", failed, st2.Consistency())
		}
		t.Logf("\t%s\tShould report the inconsistent block.", success)

		// Queries still work, mutation is refused.
		if bal := st2.QueryAccount(accountID(t, "pavel")).Balance; bal == 0 {
			t.Fatalf("\t%s\tShould still serve queries.", failed)
		}
		t.Logf("\t%s\tShould still serve queries.", success)

		tx, err := database.NewTx(chainID, 1, toID, 100, 25_000, 1, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		signedTx, err := tx.Sign(privateKey(t, "pavel"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
		}

		if err := st2.SubmitWalletTransaction(signedTx); err == nil {
			t.Fatalf("\t%s\tShould refuse a transaction submission.", failed)
		}
		t.Logf("\t%s\tShould refuse a transaction submission.", success)

		if _, err := st2.MineEmptyBlock(); err == nil {
			t.Fatalf("\t%s\tShould refuse to mine.", failed)
		}
		t.Logf("\t%s\tShould refuse to mine.", success)

		// Reset wipes the chain and clears the poison.
		if err := st2.Reset(); err != nil {
			t.Fatalf("\t%s\tShould be able to reset the node: %v", failed, err)
		}
		if st2.Consistency() != nil {
			t.Fatalf("\t%s\tShould clear the poison on reset.", failed)
		}
		if st2.RetrieveLatestBlock().Header.Number != 0 {
			t.Fatalf("\t%s\tShould be back at the genesis block.", failed)
		}
		t.Logf("\t%s\tShould clear the poison on reset.", success)

		if err := st2.SubmitWalletTransaction(signedBadTx); err != nil {
			t.Fatalf("\t%s\tShould accept transactions again: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept transactions again.", success)
	}
}

func Test_StaleEviction(t *testing.T) {
	t.Log("Given the need to evict transactions that sat pending too long.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		submit(t, st, "pavel", 0, toID, 100, 25_000, 1, nil)

		clock.now = clock.now.Add(20 * time.Minute)
		submit(t, st, "bill", 0, toID, 100, 25_000, 1, nil)

		if n := st.EvictStaleTransactions(15 * time.Minute); n != 1 {
			t.Fatalf("\t%s\tShould evict 1 stale transaction, got %d.", failed, n)
		}
		t.Logf("\t%s\tShould evict 1 stale transaction.", success)

		if n := st.QueryMempoolLength(); n != 1 {
			t.Fatalf("\t%s\tShould keep the fresh transaction, got %d.", failed, n)
		}
		t.Logf("\t%s\tShould keep the fresh transaction.", success)
	}
}

func Test_SubmitGasBounds(t *testing.T) {
	t.Log("Given the need to refuse unusable gas settings at submission.")
	{
		strg, err := storage.NewMemory()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		clock := fixedClock{now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)}
		st := newState(t, strg, &clock)
		defer st.Shutdown()

		sign := func(nonce uint64, gasLimit uint64, gasPrice uint64) database.SignedTx {
			tx, err := database.NewTx(chainID, nonce, toID, 100, gasLimit, gasPrice, nil)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
			}
			signedTx, err := tx.Sign(privateKey(t, "pavel"))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
			}
			return signedTx
		}

		// A gas limit no block can hold must never enter the mempool, where
		// it could only squat until eviction.
		err = st.SubmitWalletTransaction(sign(0, 600_001, 1))
		if err == nil {
			t.Fatalf("\t%s\tShould refuse a gas limit above the block gas limit.", failed)
		}
		if kind, ok := validate.ErrorKind(err); !ok || kind != validate.KindMalformed {
			t.Fatalf("\t%s\tShould classify the oversized gas limit as malformed, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould refuse a gas limit above the block gas limit.", success)

		// A fee that wraps uint64 would pass a naive balance check and mint
		// balance through the unused gas refund when mined.
		err = st.SubmitWalletTransaction(sign(0, 1<<19, 1<<45))
		if err == nil {
			t.Fatalf("\t%s\tShould refuse a fee that overflows.", failed)
		}
		if kind, ok := validate.ErrorKind(err); !ok || kind != validate.KindInsufficientBalance {
			t.Fatalf("\t%s\tShould classify the overflowing fee as insufficient balance, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould refuse a fee that overflows.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould leave the mempool empty, got %d.", failed, st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould leave the mempool empty.", success)

		if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould have nothing to mine: %v", failed, err)
		}

		if bal := st.QueryAccount(accountID(t, "pavel")).Balance; bal != 1_000_000 {
			t.Fatalf("\t%s\tShould leave the sender balance untouched, got %d.", failed, bal)
		}
		t.Logf("\t%s\tShould leave the sender balance untouched.", success)
	}
}
