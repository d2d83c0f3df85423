// Package private maintains the group of handlers for node administration.
package private

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/simchain/simchain/business/web/errs"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/state"
	"github.com/simchain/simchain/foundation/nameservice"
	"github.com/simchain/simchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node administration endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()

	status := struct {
		LatestBlockHash   string             `json:"latest_block_hash"`
		LatestBlockNumber uint64             `json:"latest_block_number"`
		Beneficiary       database.AccountID `json:"beneficiary"`
		MempoolLength     int                `json:"mempool_length"`
		ChainConsistent   bool               `json:"chain_consistent"`
	}{
		LatestBlockHash:   latestBlock.Hash(),
		LatestBlockNumber: latestBlock.Header.Number,
		Beneficiary:       h.State.RetrieveBeneficiaryID(),
		MempoolLength:     h.State.QueryMempoolLength(),
		ChainConsistent:   h.State.Consistency() == nil,
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// MineNextBlock seals the best pending transactions into the next block
// without waiting for the background worker.
func (h Handlers) MineNextBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineNewBlock(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNoTransactions) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return err
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// MineEmptyBlock seals a block with no transactions to advance the chain.
func (h Handlers) MineEmptyBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineEmptyBlock()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// Reset wipes the chain back to a fresh genesis.
func (h Handlers) Reset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := web.GetValues(ctx)

	h.Log.Infow("chain reset", "traceid", v.TraceID)
	if err := h.State.Reset(); err != nil {
		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "chain reset to genesis",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns raw block data for the specified range.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = strconv.FormatUint(state.QueryLatest, 10)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = strconv.FormatUint(state.QueryLatest, 10)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// Mempool returns the raw set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	return web.Respond(ctx, w, txs, http.StatusOK)
}
