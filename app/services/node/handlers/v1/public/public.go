// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/simchain/simchain/business/web/errs"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/state"
	"github.com/simchain/simchain/foundation/events"
	"github.com/simchain/simchain/foundation/nameservice"
	"github.com/simchain/simchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Hub
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := web.GetValues(ctx)

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Subscribe(v.TraceID)
	defer h.Evts.Unsubscribe(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a new user transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := web.GetValues(ctx)

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "from:nonce", signedTx, "to", signedTx.ToID, "value", signedTx.Value, "gas_price", signedTx.GasPrice)
	if err := h.State.SubmitWalletTransaction(signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		TxHash string `json:"tx_hash"`
	}{
		Status: "transaction added to mempool",
		TxHash: signedTx.HashString(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Simulate executes a transaction against a copy of the current state and
// returns the receipt it would produce. Nothing is persisted.
func (h Handlers) Simulate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	receipt, err := h.State.SimulateTransaction(signedTx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, receipt, http.StatusOK)
}

// EstimateGas reports the gas a transaction would consume.
func (h Handlers) EstimateGas(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	gas, err := h.State.EstimateGas(signedTx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Gas uint64 `json:"gas"`
	}{
		Gas: gas,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, 0, len(mempool))
	for _, tran := range mempool {
		trans = append(trans, h.toTx(tran))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns the current state for all accounts or one account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	param := web.Param(r, "account")

	var accounts map[database.AccountID]database.Account
	switch param {
	case "":
		accounts = h.State.QueryAccounts()

	default:
		accountID, err := database.ToAccountID(param)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		account := h.State.QueryAccount(accountID)
		accounts = map[database.AccountID]database.Account{accountID: account}
	}

	acts := make([]info, 0, len(accounts))
	for accountID, account := range accounts {
		act := info{
			Account: accountID,
			Name:    h.NS.Lookup(accountID),
			Balance: account.Balance,
			Nonce:   account.Nonce,
			HasCode: account.HasCode(),
		}
		acts = append(acts, act)
	}

	ai := actInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// AccountPending returns the account as it would look if every pending
// transaction were sealed right now.
func (h Handlers) AccountPending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	account := h.State.QueryAccountPending(accountID)

	act := info{
		Account: accountID,
		Name:    h.NS.Lookup(accountID),
		Balance: account.Balance,
		Nonce:   account.Nonce,
		HasCode: account.HasCode(),
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// StorageAt returns the value stored under the specified key for the
// specified contract account.
func (h Handlers) StorageAt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Account database.AccountID `json:"account"`
		Key     string             `json:"key"`
		Value   string             `json:"value"`
	}{
		Account: accountID,
		Key:     web.Param(r, "key"),
		Value:   h.State.QueryStorage(accountID, web.Param(r, "key")),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// CodeAt returns the contract code installed on the specified account.
func (h Handlers) CodeAt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Account database.AccountID `json:"account"`
		Code    string             `json:"code"`
	}{
		Account: accountID,
		Code:    hexutil.Encode(h.State.QueryCode(accountID)),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns the blocks for the specified range of numbers. The
// literal "latest" selects the latest block.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, to, err := blockRange(r)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByNumber(from, to)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = h.toBlock(blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blk, err := h.State.QueryBlockByHash(web.Param(r, "hash"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, h.toBlock(blk), http.StatusOK)
}

// Transaction returns the sealed transaction with the specified hash.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tran, err := h.State.QueryTransaction(web.Param(r, "hash"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, h.toTx(tran), http.StatusOK)
}

// Receipt returns the receipt recorded for the specified transaction.
func (h Handlers) Receipt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	receipt, err := h.State.QueryReceipt(web.Param(r, "hash"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, receipt, http.StatusOK)
}

// Logs returns the logs matching the posted filter.
func (h Handlers) Logs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var filter logFilter
	if err := web.Decode(r, &filter); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	lf := state.LogFilter{
		FromBlock: filter.FromBlock,
		ToBlock:   filter.ToBlock,
		Topics:    filter.Topics,
	}
	if filter.Account != "" {
		accountID, err := database.ToAccountID(filter.Account)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		lf.AccountID = accountID
	}

	logs := h.State.QueryLogs(lf)

	return web.Respond(ctx, w, logs, http.StatusOK)
}

// =============================================================================

// toTx converts a block transaction into its view model.
func (h Handlers) toTx(tran database.BlockTx) tx {
	account, _ := tran.FromAccount()

	return tx{
		FromAccount: account,
		FromName:    h.NS.Lookup(account),
		To:          tran.ToID,
		ToName:      h.NS.Lookup(tran.ToID),
		Nonce:       tran.Nonce,
		Value:       tran.Value,
		GasLimit:    tran.GasLimit,
		GasPrice:    tran.GasPrice,
		Data:        tran.Data,
		TimeStamp:   tran.TimeStamp,
		Sig:         tran.SignatureString(),
	}
}

// toBlock converts a sealed block into its view model.
func (h Handlers) toBlock(blk database.Block) block {
	trans := blk.Transactions()

	txs := make([]tx, len(trans))
	for i, tran := range trans {
		txs[i] = h.toTx(tran)
	}

	return block{
		Number:      blk.Header.Number,
		Hash:        blk.Hash(),
		ParentHash:  blk.Header.ParentHash,
		TimeStamp:   blk.Header.TimeStamp,
		Beneficiary: blk.Header.BeneficiaryID,
		StateRoot:   blk.Header.StateRoot,
		TransRoot:   blk.Header.TransRoot,
		GasUsed:     blk.Header.GasUsed,
		GasLimit:    blk.Header.GasLimit,
		Trans:       txs,
	}
}

// blockRange parses the from/to parameters, accepting "latest" or a number.
func blockRange(r *http.Request) (uint64, uint64, error) {
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
		return 0, 0, err
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}

	if from != state.QueryLatest && to != state.QueryLatest && from > to {
		return 0, 0, errors.New("from greater than to")
	}

	return from, to, nil
}
