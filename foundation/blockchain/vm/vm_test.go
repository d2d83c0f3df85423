package vm_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/database/storage"
	"github.com/simchain/simchain/foundation/blockchain/genesis"
	"github.com/simchain/simchain/foundation/blockchain/vm"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const contractID = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"

func newDatabase(t *testing.T) *database.Database {
	gen := genesis.Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		BlockGasLimit: 600_000,
		MinGasPrice:   1,
		Balances:      map[string]uint64{},
	}

	strg, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
	}

	db, err := database.New(gen, strg)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the database: %v", failed, err)
	}

	return db
}

func Test_StoreAndLog(t *testing.T) {
	t.Log("Given the need to run a program that writes storage and emits a log.")
	{
		key := []byte{0xaa}
		value := []byte{0xbb}
		topic := []byte{0xcc}
		data := []byte("hello")

		code := vm.NewProgram().
			Store(key, value).
			Log([][]byte{topic}, data).
			Halt().
			Bytes()

		db := newDatabase(t)

		result, err := vm.Run(code, vm.Context{ContractID: contractID, GasBudget: 10_000}, db)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to run the program: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to run the program.", success)

		expGas := vm.GasStore + vm.GasLog + vm.GasTopic + vm.GasLogData*uint64(len(data))
		if result.GasUsed != expGas {
			t.Fatalf("\t%s\tShould charge %d gas, got %d.", failed, expGas, result.GasUsed)
		}
		t.Logf("\t%s\tShould charge the exact operation cost.", success)

		word := make([]byte, vm.WordSize)
		copy(word, key)
		got := db.GetStorage(contractID, hexutil.Encode(word))

		expWord := make([]byte, vm.WordSize)
		copy(expWord, value)
		if got != hexutil.Encode(expWord) {
			t.Fatalf("\t%s\tShould write the storage slot, got %q.", failed, got)
		}
		t.Logf("\t%s\tShould write the storage slot.", success)

		if len(result.Logs) != 1 {
			t.Fatalf("\t%s\tShould emit one log, got %d.", failed, len(result.Logs))
		}
		log := result.Logs[0]
		if log.AccountID != contractID || len(log.Topics) != 1 || string(log.Data) != "hello" {
			t.Fatalf("\t%s\tShould attribute the log to the contract with its payload.", failed)
		}
		t.Logf("\t%s\tShould emit the log with its topics and payload.", success)
	}
}

func Test_OutOfGas(t *testing.T) {
	t.Log("Given the need to clamp gas at the budget when a run exhausts it.")
	{
		code := vm.NewProgram().Burn(500).Burn(500).Bytes()
		db := newDatabase(t)

		result, err := vm.Run(code, vm.Context{ContractID: contractID, GasBudget: 700}, db)
		if !errors.Is(err, vm.ErrOutOfGas) {
			t.Fatalf("\t%s\tShould fault with out of gas, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould fault with out of gas.", success)

		if result.GasUsed != 700 {
			t.Fatalf("\t%s\tShould clamp gas used to the budget, got %d.", failed, result.GasUsed)
		}
		t.Logf("\t%s\tShould clamp gas used to the budget.", success)
	}
}

func Test_Revert(t *testing.T) {
	t.Log("Given the need to trap and report the gas consumed so far.")
	{
		code := vm.NewProgram().Burn(100).Revert().Bytes()
		db := newDatabase(t)

		result, err := vm.Run(code, vm.Context{ContractID: contractID, GasBudget: 10_000}, db)
		if !errors.Is(err, vm.ErrRuntimeTrap) {
			t.Fatalf("\t%s\tShould fault with a runtime trap, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould fault with a runtime trap.", success)

		if result.GasUsed != 100 {
			t.Fatalf("\t%s\tShould report the gas consumed before the trap, got %d.", failed, result.GasUsed)
		}
		t.Logf("\t%s\tShould report the gas consumed before the trap.", success)
	}
}

func Test_InvalidPrograms(t *testing.T) {
	tt := []struct {
		name string
		code []byte
	}{
		{name: "unknown opcode", code: []byte{0x7f}},
		{name: "truncated store", code: []byte{vm.OpStore, 0x01, 0x02}},
		{name: "truncated burn", code: []byte{vm.OpBurn, 0x00}},
		{name: "truncated log", code: []byte{vm.OpLog, 0x01}},
		{name: "too many topics", code: []byte{vm.OpLog, 0x05}},
	}

	t.Log("Given the need to fault on malformed byte code.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen running a %s program.", testID, tst.name)
			{
				f := func(t *testing.T) {
					db := newDatabase(t)

					_, err := vm.Run(tst.code, vm.Context{ContractID: contractID, GasBudget: 10_000}, db)
					if !errors.Is(err, vm.ErrInvalidOpcode) {
						t.Fatalf("\t%s\tTest %d:\tShould fault with an invalid opcode, got %v.", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould fault with an invalid opcode.", success, testID)

					if !vm.IsFault(err) {
						t.Fatalf("\t%s\tTest %d:\tShould classify the error as a fault.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould classify the error as a fault.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ImplicitHalt(t *testing.T) {
	t.Log("Given the need to treat running off the end of the code as a halt.")
	{
		code := vm.NewProgram().Burn(10).Bytes()
		db := newDatabase(t)

		result, err := vm.Run(code, vm.Context{ContractID: contractID, GasBudget: 100}, db)
		if err != nil {
			t.Fatalf("\t%s\tShould halt successfully: %v", failed, err)
		}
		t.Logf("\t%s\tShould halt successfully.", success)

		if result.GasUsed != 10 {
			t.Fatalf("\t%s\tShould charge only what ran, got %d.", failed, result.GasUsed)
		}
		t.Logf("\t%s\tShould charge only what ran.", success)
	}
}
