// Package vm implements the deterministic contract runtime. A contract is
// a byte-coded program over a closed set of operations: write a storage
// slot, emit a log, burn gas, halt, or trap. Execution is a pure function
// of the program bytes and the gas budget; there is no clock, randomness
// or I/O inside the runtime, which keeps replays reproducible.
package vm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/simchain/simchain/foundation/blockchain/database"
)

// The closed set of operations a contract can perform.
const (
	OpHalt   byte = 0x00 // Stop execution successfully.
	OpStore  byte = 0x01 // Write a 32 byte key / 32 byte value storage slot.
	OpLog    byte = 0x02 // Emit a log with up to 4 topics and a data payload.
	OpBurn   byte = 0x03 // Consume an explicit amount of gas.
	OpRevert byte = 0xfe // Trap, discarding all effects of this execution.
)

// Gas costs for the runtime operations.
const (
	GasStore   uint64 = 100 // Cost of one storage write.
	GasLog     uint64 = 50  // Base cost of emitting a log.
	GasLogData uint64 = 8   // Cost per byte of log data.
	GasTopic   uint64 = 32  // Cost per log topic.
)

// WordSize is the size of storage keys, storage values and log topics.
const WordSize = 32

// MaxTopics bounds the number of topics a single log can carry.
const MaxTopics = 4

// Execution faults. A fault is contained within a single transaction:
// the executor discards the storage writes and logs of the faulted run.
var (
	ErrOutOfGas      = errors.New("out of gas")
	ErrRuntimeTrap   = errors.New("runtime trap")
	ErrInvalidOpcode = errors.New("invalid opcode")
)

// =============================================================================

// Context carries the scoped execution environment for one contract run.
type Context struct {
	ContractID database.AccountID // The account whose storage is written and who emits logs.
	GasBudget  uint64             // Gas available to the run.
}

// Result reports what a contract run produced. On a fault, GasUsed still
// reflects the gas consumed up to the fault.
type Result struct {
	GasUsed uint64
	Logs    []database.Log
}

// Run executes the program against the provided database. The caller is
// responsible for snapshotting the database before the run and reverting
// it if Run returns a fault. Termination is guaranteed by the gas budget:
// every operation has a positive cost.
func Run(code []byte, ctx Context, db *database.Database) (Result, error) {
	var result Result
	pc := 0

	charge := func(amount uint64) error {
		if result.GasUsed+amount > ctx.GasBudget {
			result.GasUsed = ctx.GasBudget
			return ErrOutOfGas
		}
		result.GasUsed += amount
		return nil
	}

	for pc < len(code) {
		op := code[pc]
		pc++

		switch op {
		case OpHalt:
			return result, nil

		case OpStore:
			if pc+2*WordSize > len(code) {
				return result, fmt.Errorf("truncated store at offset %d: %w", pc-1, ErrInvalidOpcode)
			}
			if err := charge(GasStore); err != nil {
				return result, err
			}

			key := hexutil.Encode(code[pc : pc+WordSize])
			value := hexutil.Encode(code[pc+WordSize : pc+2*WordSize])
			db.SetStorage(ctx.ContractID, key, value)
			pc += 2 * WordSize

		case OpLog:
			if pc >= len(code) {
				return result, fmt.Errorf("truncated log at offset %d: %w", pc-1, ErrInvalidOpcode)
			}
			topicCount := int(code[pc])
			pc++
			if topicCount > MaxTopics {
				return result, fmt.Errorf("log with %d topics at offset %d: %w", topicCount, pc-2, ErrInvalidOpcode)
			}
			if pc+topicCount*WordSize+2 > len(code) {
				return result, fmt.Errorf("truncated log at offset %d: %w", pc-2, ErrInvalidOpcode)
			}

			topics := make([]string, topicCount)
			for i := 0; i < topicCount; i++ {
				topics[i] = hexutil.Encode(code[pc : pc+WordSize])
				pc += WordSize
			}

			dataLen := int(binary.BigEndian.Uint16(code[pc : pc+2]))
			pc += 2
			if pc+dataLen > len(code) {
				return result, fmt.Errorf("truncated log data at offset %d: %w", pc, ErrInvalidOpcode)
			}
			data := append([]byte(nil), code[pc:pc+dataLen]...)
			pc += dataLen

			if err := charge(GasLog + GasTopic*uint64(topicCount) + GasLogData*uint64(dataLen)); err != nil {
				return result, err
			}

			result.Logs = append(result.Logs, database.Log{
				AccountID: ctx.ContractID,
				Topics:    topics,
				Data:      data,
			})

		case OpBurn:
			if pc+4 > len(code) {
				return result, fmt.Errorf("truncated burn at offset %d: %w", pc-1, ErrInvalidOpcode)
			}
			amount := uint64(binary.BigEndian.Uint32(code[pc : pc+4]))
			pc += 4

			if err := charge(amount); err != nil {
				return result, err
			}

		case OpRevert:
			return result, ErrRuntimeTrap

		default:
			return result, fmt.Errorf("opcode 0x%02x at offset %d: %w", op, pc-1, ErrInvalidOpcode)
		}
	}

	// Running off the end of the program is a normal halt.
	return result, nil
}

// IsFault reports whether the error is one of the contained execution
// faults rather than an infrastructure failure.
func IsFault(err error) bool {
	return errors.Is(err, ErrOutOfGas) || errors.Is(err, ErrRuntimeTrap) || errors.Is(err, ErrInvalidOpcode)
}
