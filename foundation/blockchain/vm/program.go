package vm

import "encoding/binary"

// Program provides a small builder for composing contract byte code. It
// exists for tests and tooling; the runtime only ever sees the raw bytes.
type Program struct {
	code []byte
}

// NewProgram constructs an empty program.
func NewProgram() *Program {
	return &Program{}
}

// Store appends a storage write of the specified key and value. Inputs
// shorter than a word are right padded with zeros, longer inputs are
// truncated to a word.
func (p *Program) Store(key []byte, value []byte) *Program {
	p.code = append(p.code, OpStore)
	p.code = append(p.code, toWord(key)...)
	p.code = append(p.code, toWord(value)...)
	return p
}

// Log appends a log emission with the specified topics and data payload.
func (p *Program) Log(topics [][]byte, data []byte) *Program {
	p.code = append(p.code, OpLog, byte(len(topics)))
	for _, topic := range topics {
		p.code = append(p.code, toWord(topic)...)
	}

	var dataLen [2]byte
	binary.BigEndian.PutUint16(dataLen[:], uint16(len(data)))
	p.code = append(p.code, dataLen[:]...)
	p.code = append(p.code, data...)
	return p
}

// Burn appends an operation consuming the specified amount of gas.
func (p *Program) Burn(amount uint32) *Program {
	var operand [4]byte
	binary.BigEndian.PutUint32(operand[:], amount)

	p.code = append(p.code, OpBurn)
	p.code = append(p.code, operand[:]...)
	return p
}

// Revert appends a trap operation.
func (p *Program) Revert() *Program {
	p.code = append(p.code, OpRevert)
	return p
}

// Halt appends an explicit stop operation.
func (p *Program) Halt() *Program {
	p.code = append(p.code, OpHalt)
	return p
}

// Bytes returns the composed byte code.
func (p *Program) Bytes() []byte {
	return append([]byte(nil), p.code...)
}

// toWord normalizes the input to exactly one word.
func toWord(b []byte) []byte {
	word := make([]byte, WordSize)
	copy(word, b)
	return word
}
