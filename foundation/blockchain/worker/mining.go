package worker

import (
	"context"
	"errors"
	"time"

	"github.com/simchain/simchain/foundation/blockchain/state"
)

// miningOperations handles block production.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation drains the mempool into a new block. If transactions
// remain after the block was sealed, a new operation is signaled so the pool
// keeps draining.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Make sure there are transactions in the mempool.
	length := w.state.QueryMempoolLength()
	if length == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine: Txs[%d]", length)
		return
	}

	// After running a mining operation, check if a new operation should
	// be signaled again.
	defer func() {
		length := w.state.QueryMempoolLength()
		if length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
			w.SignalStartMining()
		}
	}()

	t := time.Now()
	block, err := w.state.MineNewBlock(context.Background())
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions in mempool")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: sealed block: number[%d] hash[%s]", block.Header.Number, block.Hash())
}

// =============================================================================

// evictionOperations periodically sweeps the mempool for transactions that
// have been pending longer than the configured maximum age.
func (w *Worker) evictionOperations() {
	w.evHandler("worker: evictionOperations: G started")
	defer w.evHandler("worker: evictionOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if n := w.state.EvictStaleTransactions(maxTxAge); n > 0 {
				w.evHandler("worker: evictionOperations: evicted %d transactions", n)
			}
		case <-w.shut:
			w.evHandler("worker: evictionOperations: received shut signal")
			return
		}
	}
}
