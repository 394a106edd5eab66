// Command walletserver is the legacy-compatible wallet HTTP surface,
// adapted from the teacher's walletserver/main.go: same gorilla/mux
// router and service/controller layering, now fronting this project's
// multisig coordination engine instead of a single-key HDWallet.
//
// It runs as an optional secondary surface alongside cmd/walletd's
// primary chi-based server (spec.md §6's full route set), handy for
// operators who already script against the teacher's four-route shape.
// Storage is in-memory only here; point both servers at the same
// persistent store once one is wired (see internal/store's doc comment).
package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/hub"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/store/memstore"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/utxosvc"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
	"github.com/obyte-wallet/walletd/walletserver/config"
	"github.com/obyte-wallet/walletd/walletserver/controllers"
	"github.com/obyte-wallet/walletd/walletserver/routes"
	"github.com/obyte-wallet/walletd/walletserver/services"
)

func main() {
	if err := config.Load(); err != nil {
		logrus.Fatal(err)
	}

	st := memstore.New()
	locker := lock.New()
	broker := notify.NewBroker(st)
	exp := explorer.NewMem()
	h := hub.NewMem()
	lockOpts := lock.Options{Wait: 5 * time.Second, Hold: 40 * time.Second}

	wallets := walletsvc.New(st, locker, broker, 100, lockOpts)
	addrs := addrsvc.New(st, locker, exp, lockOpts, 20, 10)
	utxos := utxosvc.New(st, exp)
	txs := txsvc.New(st, locker, broker, addrs, utxos, exp, h, lockOpts, 10, time.Hour, time.Hour)

	svc := services.NewService(wallets, addrs, txs)
	ctrl := controllers.NewWalletController(svc)

	r := mux.NewRouter()
	routes.Register(r, ctrl)

	logrus.Infof("wallet server listening on %s", config.AppConfig.Port)
	if err := http.ListenAndServe(":"+config.AppConfig.Port, r); err != nil {
		logrus.Fatal(err)
	}
}
