package validate_test

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/database/storage"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	chainID     = uint16(1)
	minGasPrice = uint64(5)
	pkHexKey    = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	toID        = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

func setup(t *testing.T, balance uint64) (*database.Database, genesis.Genesis, *ecdsa.PrivateKey, database.AccountID) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
	}
	fromID := database.PublicKeyToAccountID(pk.PublicKey)

	gen := genesis.Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       chainID,
		TransPerBlock: 10,
		BlockGasLimit: 600_000,
		MinGasPrice:   minGasPrice,
		Balances: map[string]uint64{
			string(fromID): balance,
		},
	}

	strg, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
	}

	db, err := database.New(gen, strg)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the database: %v", failed, err)
	}

	return db, gen, pk, fromID
}

func signTx(t *testing.T, pk *ecdsa.PrivateKey, tx database.Tx) database.SignedTx {
	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}
	return signedTx
}

func Test_CheckSuccess(t *testing.T) {
	t.Log("Given the need to admit a well formed, funded transaction.")
	{
		db, gen, pk, fromID := setup(t, 1_000_000)

		tx, err := database.NewTx(chainID, 0, toID, 100, 25_000, minGasPrice, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
		}

		vtx, err := validate.Check(signTx(t, pk, tx), gen, db)
		if err != nil {
			t.Fatalf("\t%s\tShould pass validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass validation.", success)

		if vtx.FromID != fromID {
			t.Fatalf("\t%s\tShould recover the sender, got %s.", failed, vtx.FromID)
		}
		t.Logf("\t%s\tShould recover the sender.", success)
	}
}

func Test_CheckFailures(t *testing.T) {
	tt := []struct {
		name    string
		balance uint64
		mutate  func(tx *database.Tx)
		tamper  func(tx *database.SignedTx)
		kind    validate.Kind
	}{
		{
			name:    "wrong chain",
			balance: 1_000_000,
			mutate:  func(tx *database.Tx) { tx.ChainID = 99 },
			kind:    validate.KindMalformed,
		},
		{
			name:    "gas price below minimum",
			balance: 1_000_000,
			mutate:  func(tx *database.Tx) { tx.GasPrice = minGasPrice - 1 },
			kind:    validate.KindGasTooLow,
		},
		{
			// Recovery against tampered data yields a different sender,
			// which has no funds.
			name:    "tampered payload",
			balance: 1_000_000,
			tamper:  func(tx *database.SignedTx) { tx.Value++ },
			kind:    validate.KindInsufficientBalance,
		},
		{
			name:    "invalid recovery id",
			balance: 1_000_000,
			tamper:  func(tx *database.SignedTx) { tx.V = big.NewInt(99) },
			kind:    validate.KindMalformed,
		},
		{
			name:    "insufficient balance",
			balance: 10,
			kind:    validate.KindInsufficientBalance,
		},
		{
			name:    "gas limit below intrinsic cost",
			balance: 1_000_000,
			mutate:  func(tx *database.Tx) { tx.GasLimit = validate.TxGas - 1 },
			kind:    validate.KindGasTooLow,
		},
		{
			name:    "gas limit above the block gas limit",
			balance: 1_000_000,
			mutate:  func(tx *database.Tx) { tx.GasLimit = 600_001 },
			kind:    validate.KindMalformed,
		},
		{
			// The gas limit fits a block but the fee wraps uint64. The
			// wrapped cost must not pass the balance check.
			name:    "overflowing fee",
			balance: 1_000_000,
			mutate: func(tx *database.Tx) {
				tx.GasLimit = 1 << 19
				tx.GasPrice = 1 << 45
			},
			kind: validate.KindInsufficientBalance,
		},
		{
			name:    "nonce mismatch",
			balance: 1_000_000,
			mutate:  func(tx *database.Tx) { tx.Nonce = 7 },
			kind:    validate.KindNonceMismatch,
		},
		{
			// Nonce is checked before balance, so a transaction failing
			// both reports the nonce.
			name:    "nonce mismatch on an unfunded account",
			balance: 10,
			mutate:  func(tx *database.Tx) { tx.Nonce = 7 },
			kind:    validate.KindNonceMismatch,
		},
	}

	t.Log("Given the need to classify every validation failure.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen checking a transaction with a %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					db, gen, pk, _ := setup(t, tst.balance)

					tx, err := database.NewTx(chainID, 0, toID, 100, 25_000, minGasPrice, nil)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the transaction: %v", failed, testID, err)
					}
					if tst.mutate != nil {
						tst.mutate(&tx)
					}

					signedTx := signTx(t, pk, tx)
					if tst.tamper != nil {
						tst.tamper(&signedTx)
					}

					_, err = validate.Check(signedTx, gen, db)
					if err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the transaction.", success, testID)

					kind, ok := validate.ErrorKind(err)
					if !ok || kind != tst.kind {
						t.Fatalf("\t%s\tTest %d:\tShould classify the failure as %s, got %s.", failed, testID, tst.kind, kind)
					}
					t.Logf("\t%s\tTest %d:\tShould classify the failure as %s.", success, testID, tst.kind)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_CheckRelaxedNonce(t *testing.T) {
	t.Log("Given the need to validate a transaction against a future nonce.")
	{
		db, gen, pk, fromID := setup(t, 1_000_000)

		tx, err := database.NewTx(chainID, 7, toID, 100, 25_000, minGasPrice, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
		}
		signedTx := signTx(t, pk, tx)

		if _, err := validate.Check(signedTx, gen, db); err == nil {
			t.Fatalf("\t%s\tShould fail the strict nonce check.", failed)
		}
		t.Logf("\t%s\tShould fail the strict nonce check.", success)

		vtx, err := validate.CheckRelaxedNonce(signedTx, gen, db)
		if err != nil {
			t.Fatalf("\t%s\tShould pass with the nonce check relaxed: %v", failed, err)
		}
		if vtx.FromID != fromID {
			t.Fatalf("\t%s\tShould recover the sender, got %s.", failed, vtx.FromID)
		}
		t.Logf("\t%s\tShould pass with the nonce check relaxed.", success)

		// Relaxing the nonce must not relax the economics.
		broke, brokeGen, brokePk, _ := setup(t, 10)
		brokeTx, err := database.NewTx(chainID, 7, toID, 100, 25_000, minGasPrice, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
		}

		_, err = validate.CheckRelaxedNonce(signTx(t, brokePk, brokeTx), brokeGen, broke)
		if err == nil {
			t.Fatalf("\t%s\tShould still enforce the balance check.", failed)
		}
		if kind, ok := validate.ErrorKind(err); !ok || kind != validate.KindInsufficientBalance {
			t.Fatalf("\t%s\tShould classify the failure as insufficient balance, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould still enforce the balance check.", success)
	}
}

func Test_IntrinsicGas(t *testing.T) {
	t.Log("Given the need to price the intrinsic cost of a transaction.")
	{
		transfer := database.Tx{ToID: toID}
		if gas := validate.IntrinsicGas(transfer); gas != validate.TxGas {
			t.Fatalf("\t%s\tShould price a plain transfer at the base cost, got %d.", failed, gas)
		}
		t.Logf("\t%s\tShould price a plain transfer at the base cost.", success)

		payload := database.Tx{ToID: toID, Data: make([]byte, 10)}
		exp := validate.TxGas + 10*validate.TxDataGas
		if gas := validate.IntrinsicGas(payload); gas != exp {
			t.Fatalf("\t%s\tShould price each payload byte, got %d.", failed, gas)
		}
		t.Logf("\t%s\tShould price each payload byte.", success)

		create := database.Tx{Data: make([]byte, 10)}
		exp = validate.TxGas + 10*validate.TxDataGas + validate.TxCreateGas
		if gas := validate.IntrinsicGas(create); gas != exp {
			t.Fatalf("\t%s\tShould surcharge contract creation, got %d.", failed, gas)
		}
		t.Logf("\t%s\tShould surcharge contract creation.", success)
	}
}
