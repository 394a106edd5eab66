// Package httpapi binds the core engine (session, walletsvc, addrsvc,
// txsvc, utxosvc, chainsvc) onto the HTTP surface named in spec.md §6,
// following the teacher's controller/router separation
// (walletserver/routes, walletserver/controllers) but routed through
// chi instead of gorilla/mux for the primary surface (see SPEC_FULL.md's
// domain-stack section for why both routers are kept).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/config"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/fiat"
	"github.com/obyte-wallet/walletd/internal/hub"
	"github.com/obyte-wallet/walletd/internal/mail"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/push"
	"github.com/obyte-wallet/walletd/internal/session"
	"github.com/obyte-wallet/walletd/internal/store"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/utxosvc"
	"github.com/obyte-wallet/walletd/internal/walletlog"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
)

// Server wires every core-engine service onto HTTP handlers.
type Server struct {
	cfg      *config.Config
	sessions *session.Service
	wallets  *walletsvc.Service
	addrs    *addrsvc.Service
	txs      *txsvc.Service
	utxos    *utxosvc.Service
	broker   *notify.Broker
	explorer explorer.Explorer
	hub      hub.Hub
	store    store.Store
	fiat     *fiat.Cache
	push     push.Notifier
	mail     mail.Sender
}

// Deps bundles the constructed services the server dispatches to.
type Deps struct {
	Config   *config.Config
	Sessions *session.Service
	Wallets  *walletsvc.Service
	Addrs    *addrsvc.Service
	Txs      *txsvc.Service
	Utxos    *utxosvc.Service
	Broker   *notify.Broker
	Explorer explorer.Explorer
	Hub      hub.Hub
	Store    store.Store
	Fiat     *fiat.Cache
	Push     push.Notifier
	Mail     mail.Sender
}

// New constructs the HTTP server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		cfg: d.Config, sessions: d.Sessions, wallets: d.Wallets, addrs: d.Addrs,
		txs: d.Txs, utxos: d.Utxos, broker: d.Broker, explorer: d.Explorer, hub: d.Hub,
		store: d.Store, fiat: d.Fiat, push: d.Push, mail: d.Mail,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		walletlog.L().WithFields(logrus.Fields{
			"method": r.Method, "path": r.URL.Path, "duration": time.Since(start),
		}).Info("httpapi: request")
	})
}

// Router builds the full chi mux: global middleware, the unauthenticated
// routes (login, createWallet, joinWallet), the authenticated routes
// behind requireAuth, and a gorilla/mux debug sub-router mounted at
// /debug (exercising the teacher's other HTTP-router dependency, per
// DESIGN.md).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(s.clientVersionMiddleware)

	r.Post("/login", s.handleLogin)
	r.Post("/wallets", s.handleCreateWallet)
	r.Post("/wallets/{id}/copayers", s.handleJoinWallet)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/logout", s.handleLogout)
		r.Get("/wallets", s.handleGetWallet)
		r.Get("/wallets/{id}", s.handleGetWallet)
		r.Put("/wallets", s.handleUpdateWallet)
		r.Get("/copayers", s.handleGetCopayerByDevice)
		r.Put("/copayers/{id}", s.handleAddAccess)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)

		r.Post("/addresses", s.handleCreateAddress)
		r.Get("/addresses", s.handleListAddresses)
		r.Post("/addresses/scan", s.handleScanAddresses)

		r.Get("/balance", s.handleBalance)
		r.Get("/utxos", s.handleUTXOs)
		r.Get("/txhistory", s.handleTxHistory)

		r.Post("/txproposals", s.handleCreateProposal)
		r.Get("/txproposals", s.handleListProposals)
		r.Get("/txproposals/pending", s.handleListPendingProposals)
		r.Get("/txproposals/{id}", s.handleGetProposal)
		r.Post("/txproposals/{id}/publish", s.handlePublishProposal)
		r.Post("/txproposals/{id}/signatures", s.handleSignProposal)
		r.Post("/txproposals/{id}/rejections", s.handleRejectProposal)
		r.Post("/txproposals/{id}/broadcast", s.handleBroadcastProposal)
		r.Delete("/txproposals/{id}", s.handleRemoveProposal)

		r.Post("/broadcast_raw", s.handleBroadcastRaw)
		r.Get("/txraw/{txid}", s.handleGetRawTx)

		r.Get("/txnotes/{txid}", s.handleGetTxNote)
		r.Put("/txnotes/{txid}", s.handlePutTxNote)
		r.Get("/txnotes", s.handleListTxNotes)

		r.Get("/assets", s.handleListAssets)
		r.Get("/assets/{asset}", s.handleGetAsset)
		r.Get("/fiatrates/{code}", s.handleFiatRate)

		r.Get("/notifications", s.handleListNotifications)
		r.Get("/notifications/ws", s.handleNotificationsWS)

		r.Post("/pushnotifications/subscriptions", s.handlePushSubscribe)
		r.Delete("/pushnotifications/subscriptions/{token}", s.handlePushUnsubscribe)

		r.Post("/txconfirmations", s.handleTxConfirmationSubscribe)
		r.Delete("/txconfirmations/{txid}", s.handleTxConfirmationUnsubscribe)
	})

	r.Mount("/debug", s.debugRouter())
	return r
}
