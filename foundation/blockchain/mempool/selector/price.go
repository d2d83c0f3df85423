package selector

import (
	"sort"

	"github.com/simchain/simchain/foundation/blockchain/database"
)

// priceSelect returns transactions with the best gas price while respecting
// the nonce order for each account and the block gas ceiling.
var priceSelect = func(m map[database.AccountID][]database.BlockTx, howMany int, maxGas uint64) []database.BlockTx {

	// Sort the transactions per account by nonce.
	sortByNonce(m)

	// Pick the first transaction in the slice for each account. Each
	// iteration represents a new row of selections. Within a row every
	// transaction is the lowest pending nonce of its account, so anything
	// taken from row N already has its rows 0..N-1 predecessors taken.
	var rows [][]database.BlockTx
	for {
		var row []database.BlockTx
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Walk the rows taking the best priced transactions first inside each
	// row. An account whose transaction is skipped, because it does not fit
	// the remaining gas, is barred from all later rows: taking a later nonce
	// after skipping an earlier one would produce an unexecutable gap.
	final := []database.BlockTx{}
	barred := make(map[database.AccountID]bool)

	var gas uint64
	for _, row := range rows {
		if len(final) == howMany {
			break
		}

		sort.Sort(byPrice(row))

		for _, tx := range row {
			if len(final) == howMany {
				break
			}

			from, err := tx.FromAccount()
			if err != nil || barred[from] {
				continue
			}

			// Compared this way around so the arithmetic cannot wrap:
			// gas never exceeds maxGas.
			if tx.GasLimit > maxGas-gas {
				barred[from] = true
				continue
			}

			gas += tx.GasLimit
			final = append(final, tx)
		}
	}

	return final
}
