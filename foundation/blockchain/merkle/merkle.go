// Package merkle provides a merkle tree used to fingerprint the set of
// transactions sealed into a block.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be
// stored in the tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree over values of some type T. The tree is
// built once from an ordered set of values and is immutable after that.
// An odd leaf count is handled by pairing the final leaf with itself.
type Tree[T Hashable[T]] struct {
	values []T
	leaves [][]byte
	levels [][][]byte
	root   []byte
}

// NewTree constructs a merkle tree from the ordered set of values.
func NewTree[T Hashable[T]](values []T) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, errors.New("cannot construct tree with no values")
	}

	leaves := make([][]byte, len(values))
	for i, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leaves[i] = hash
	}

	t := Tree[T]{
		values: append([]T(nil), values...),
		leaves: leaves,
	}
	t.build()

	return &t, nil
}

// build constructs every level of the tree from the leaves up.
func (t *Tree[T]) build() {
	level := t.leaves
	t.levels = [][][]byte{level}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
		t.levels = append(t.levels, level)
	}

	t.root = level[0]
}

// Values returns the ordered set of values stored in the tree.
func (t *Tree[T]) Values() []T {
	return append([]T(nil), t.values...)
}

// Count returns the number of values stored in the tree.
func (t *Tree[T]) Count() int {
	return len(t.values)
}

// Root returns the merkle root hash of the tree.
func (t *Tree[T]) Root() []byte {
	return append([]byte(nil), t.root...)
}

// RootHex returns the merkle root as a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.root)
}

// Proof returns the sibling hashes and their concatenation sides needed to
// prove the specified value is part of the tree. A side of 0 means the
// proof hash is concatenated on the left, 1 on the right.
func (t *Tree[T]) Proof(value T) (proof [][]byte, sides []int, err error) {
	idx := -1
	for i, v := range t.values {
		if v.Equals(value) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, errors.New("value not found in tree")
	}

	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}

		if sibling < idx {
			proof = append(proof, level[sibling])
			sides = append(sides, 0)
		} else {
			proof = append(proof, level[sibling])
			sides = append(sides, 1)
		}

		idx /= 2
	}

	return proof, sides, nil
}

// VerifyProof replays a proof produced by Proof against the specified root.
func VerifyProof(valueHash []byte, proof [][]byte, sides []int, root []byte) error {
	if len(proof) != len(sides) {
		return errors.New("proof and sides are not the same length")
	}

	hash := valueHash
	for i, sibling := range proof {
		if sides[i] == 0 {
			hash = hashPair(sibling, hash)
		} else {
			hash = hashPair(hash, sibling)
		}
	}

	if !bytes.Equal(hash, root) {
		return errors.New("calculated root does not match tree root")
	}

	return nil
}

// =============================================================================

// hashPair produces the hash for the next level up from two child hashes.
func hashPair(left, right []byte) []byte {
	hash := sha256.Sum256(append(append([]byte(nil), left...), right...))
	return hash[:]
}
