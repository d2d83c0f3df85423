// Package worker implements background block production and mempool
// maintenance for the node.
package worker

import (
	"sync"
	"time"

	"github.com/simchain/simchain/foundation/blockchain/state"
)

// evictionInterval represents the interval between sweeps of the mempool
// for transactions that have been pending too long.
const evictionInterval = time.Minute

// maxTxAge is how long a transaction may stay pending before a sweep
// removes it.
const maxTxAge = 15 * time.Minute

// =============================================================================

// Worker manages the block production workflow for the node.
type Worker struct {
	state       *state.State
	wg          sync.WaitGroup
	ticker      *time.Ticker
	shut        chan struct{}
	startMining chan bool
	evHandler   state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) {
	w := Worker{
		state:       st,
		ticker:      time.NewTicker(evictionInterval),
		shut:        make(chan struct{}),
		startMining: make(chan bool, 1),
		evHandler:   evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
		w.evictionOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
