// Command walletd runs the multisig wallet coordination service,
// following the teacher's cmd/synnergy cobra-root-with-subcommands shape.
package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/chainsvc"
	"github.com/obyte-wallet/walletd/internal/config"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/fiat"
	"github.com/obyte-wallet/walletd/internal/httpapi"
	"github.com/obyte-wallet/walletd/internal/hub"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/mail"
	"github.com/obyte-wallet/walletd/internal/metrics"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/push"
	"github.com/obyte-wallet/walletd/internal/session"
	"github.com/obyte-wallet/walletd/internal/store/memstore"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/utxosvc"
	"github.com/obyte-wallet/walletd/internal/walletlog"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
)

func main() {
	rootCmd := &cobra.Command{Use: "walletd"}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(genConfigCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func genConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig",
		Short: "print some default configuration values as environment variable assignments (Load reads back only WALLETD_SERVER_PORT)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Default()
			logrus.Infof("WALLETD_SERVER_PORT=%s", cfg.Server.Port)
			logrus.Infof("WALLETD_LIMITS_MAX_KEYS=%d", cfg.Limits.MaxKeys)
			logrus.Infof("WALLETD_LIMITS_MAX_MAIN_ADDRESS_GAP=%d", cfg.Limits.MaxMainAddressGap)
			logrus.Infof("WALLETD_BACKOFF_OFFSET=%d", cfg.Backoff.Offset)
		},
	}
}

func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the wallet coordination HTTP service",
		Run: func(cmd *cobra.Command, args []string) {
			runServer(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	return cmd
}

func runServer(env string) {
	cfg, err := config.Load(env)
	if err != nil {
		logrus.WithError(err).Fatal("walletd: failed to load config")
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	st := memstore.New()
	locker := lock.New()
	broker := notify.NewBroker(st)

	exp := explorer.NewMem()
	h := hub.NewMem()
	pushNotifier := push.New()
	mailSender := mail.New()
	fiatCache := fiat.New(fiat.NopProvider{}, cfg.Timers.FiatRateFetchInterval, cfg.Timers.FiatRateMaxLookBack)

	lockOpts := lock.Options{Wait: cfg.Lock.WaitTime, Hold: cfg.Lock.ExeTime}

	sessions := session.New(st, cfg.Timers.SessionExpiration, cfg.MinClientVersion)
	wallets := walletsvc.New(st, locker, broker, cfg.Limits.MaxKeys, lockOpts)
	addrs := addrsvc.New(st, locker, exp, lockOpts, cfg.Limits.MaxMainAddressGap, cfg.Limits.ScanAddressGap)
	utxos := utxosvc.New(st, exp)
	txs := txsvc.New(st, locker, broker, addrs, utxos, exp, h, lockOpts, cfg.Backoff.Offset, cfg.Backoff.Time, cfg.Timers.DeleteLockTime)
	monitor := chainsvc.New(st, broker, nil)
	_ = monitor // not connected to any ledger event source; its handlers are driven only by internal/chainsvc's tests

	server := httpapi.New(httpapi.Deps{
		Config: cfg, Sessions: sessions, Wallets: wallets, Addrs: addrs, Txs: txs, Utxos: utxos,
		Broker: broker, Explorer: exp, Hub: h, Store: st, Fiat: fiatCache, Push: pushNotifier, Mail: mailSender,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Lock.ServerExe,
		WriteTimeout: cfg.Lock.ServerExe,
	}
	walletlog.L().WithField("port", cfg.Server.Port).Info("walletd: listening")
	if err := srv.ListenAndServe(); err != nil {
		walletlog.L().WithError(err).Fatal("walletd: server stopped")
	}
}
