// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/simchain/simchain/app/services/node/handlers/v1/private"
	"github.com/simchain/simchain/app/services/node/handlers/v1/public"
	"github.com/simchain/simchain/foundation/blockchain/state"
	"github.com/simchain/simchain/foundation/events"
	"github.com/simchain/simchain/foundation/nameservice"
	"github.com/simchain/simchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Hub
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)

	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/list/:account", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/pending/:account", pbl.AccountPending)
	app.Handle(http.MethodGet, version, "/storage/:account/:key", pbl.StorageAt)
	app.Handle(http.MethodGet, version, "/code/:account", pbl.CodeAt)

	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", pbl.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/blocks/hash/:hash", pbl.BlockByHash)

	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/tx/committed/:hash", pbl.Transaction)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
	app.Handle(http.MethodPost, version, "/tx/simulate", pbl.Simulate)
	app.Handle(http.MethodPost, version, "/tx/estimate", pbl.EstimateGas)

	app.Handle(http.MethodGet, version, "/receipts/:hash", pbl.Receipt)
	app.Handle(http.MethodPost, version, "/logs/list", pbl.Logs)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/block/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/node/mempool", prv.Mempool)
	app.Handle(http.MethodPost, version, "/node/block/next", prv.MineNextBlock)
	app.Handle(http.MethodPost, version, "/node/block/empty", prv.MineEmptyBlock)
	app.Handle(http.MethodPost, version, "/node/reset", prv.Reset)
}
