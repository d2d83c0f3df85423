// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/simchain/simchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyPrice = "price"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyPrice: priceSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// account and selects howMany of them in an order based on the function's
// strategy, without the selection exceeding maxGas in total gas limits.
// All selector functions MUST respect nonce ordering per account and MUST
// never select a later nonce while skipping an earlier pending nonce from
// the same account. Receiving -1 for howMany must return as many
// transactions as fit the gas ceiling in the strategy's ordering.
type Func func(transactions map[database.AccountID][]database.BlockTx, howMany int, maxGas uint64) []database.BlockTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []database.BlockTx

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}

// =============================================================================

// byPrice provides sorting support by the transaction gas price value with
// the admission time and the transaction hash as tie breaks.
type byPrice []database.BlockTx

// Len returns the number of transactions in the list.
func (bp byPrice) Len() int {
	return len(bp)
}

// Less helps to sort the list by gas price in descending order to pick the
// transactions that pay the best fee. Admission time breaks price ties and
// the transaction hash breaks time ties, making the order total. The rows
// are assembled in map iteration order, so anything short of a total order
// would make the sealed transaction order depend on the run.
func (bp byPrice) Less(i, j int) bool {
	if bp[i].GasPrice != bp[j].GasPrice {
		return bp[i].GasPrice > bp[j].GasPrice
	}
	if bp[i].TimeStamp != bp[j].TimeStamp {
		return bp[i].TimeStamp < bp[j].TimeStamp
	}
	return bp[i].HashString() < bp[j].HashString()
}

// Swap moves transactions in the order of the gas price value.
func (bp byPrice) Swap(i, j int) {
	bp[i], bp[j] = bp[j], bp[i]
}

// =============================================================================

// sortByNonce orders each account's transactions by ascending nonce.
func sortByNonce(m map[database.AccountID][]database.BlockTx) {
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}
}
