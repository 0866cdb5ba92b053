package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/p2pdex-network/escrow-daemon/internal/config"
	"github.com/p2pdex-network/escrow-daemon/internal/core/application"
	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/infrastructure/ledger"
	"github.com/p2pdex-network/escrow-daemon/internal/infrastructure/messenger"
	tradepubsub "github.com/p2pdex-network/escrow-daemon/internal/infrastructure/pubsub"
	dbbadger "github.com/p2pdex-network/escrow-daemon/internal/infrastructure/storage/db/badger"
	"github.com/p2pdex-network/escrow-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/p2pdex-network/escrow-daemon/pkg/payout"
	"github.com/p2pdex-network/escrow-daemon/pkg/stats"
	"github.com/p2pdex-network/escrow-daemon/pkg/wallet"
	"github.com/p2pdex-network/escrow-daemon/pkg/watcher"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "escrowd"
	app.Usage = "non-custodial escrow trading daemon"
	app.Action = runDaemon

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("daemon exited with error")
	}
}

func runDaemon(_ *cli.Context) error {
	if err := config.InitConfig(); err != nil {
		return err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net := config.GetNetwork()
	datadir := config.GetDatadir()

	seed, err := hex.DecodeString(config.GetString(config.WalletSeedKey))
	if err != nil {
		return fmt.Errorf("invalid wallet seed: %s", err)
	}
	walletSvc, err := wallet.NewWallet(wallet.NewWalletOpts{
		Seed: seed,
		Net:  net,
	})
	if err != nil {
		return err
	}

	var tradeRepo domain.TradeRepository
	var closeDb func() error
	switch config.GetString(config.DBTypeKey) {
	case config.DBBadger:
		dbDir := filepath.Join(datadir, config.DbLocation)
		dbManager, err := dbbadger.NewDbManager(dbDir, nil)
		if err != nil {
			return fmt.Errorf("error while opening db: %s", err)
		}
		tradeRepo = dbbadger.NewTradeRepositoryImpl(dbManager)
		closeDb = dbManager.Close
	default:
		tradeRepo = inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore())
		closeDb = func() error { return nil }
	}

	ledgerSvc := ledger.NewInMemoryLedger()
	tradeWallet := payout.NewService(net)
	network := messenger.NewNetwork()
	peerMessenger := network.Join(config.GetString(config.PeerIdKey))
	pubsubSvc := tradepubsub.NewTradePubSub()

	watcherSvc := watcher.NewService(watcher.Opts{
		LedgerSvc:             ledgerSvc,
		Interval:              config.GetSeconds(config.WatchIntervalKey),
		ConfirmationThreshold: config.GetInt(config.DepositConfirmationsKey),
	})

	tradeSvc := application.NewTradeService(
		tradeRepo,
		walletSvc,
		tradeWallet,
		ledgerSvc,
		peerMessenger,
		pubsubSvc,
		watcherSvc,
		config.GetSeconds(config.PeerTimeoutKey),
		config.GetInt(config.DepositConfirmationsKey),
	)

	tradeSvc.Start()

	if err := tradeSvc.ResumeTrades(ctx); err != nil {
		return fmt.Errorf("error while resuming trades: %s", err)
	}

	if config.GetBool(config.EnableProfilerKey) {
		statsInterval := config.GetSeconds(config.StatsIntervalKey)
		stats.EnableMemoryStatistics(
			ctx, statsInterval, filepath.Join(datadir, config.ProfilerLocation),
		)
	}

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down daemon")
	tradeSvc.Stop()
	if err := closeDb(); err != nil {
		log.WithError(err).Warn("error while closing db")
	}
	return nil
}
