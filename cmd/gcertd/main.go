package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gcert-network/gcert-daemon/internal/config"
	"github.com/gcert-network/gcert-daemon/internal/core/application"
	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/infrastructure/notifier"
	dbbadger "github.com/gcert-network/gcert-daemon/internal/infrastructure/storage/db/badger"
	httpinterface "github.com/gcert-network/gcert-daemon/internal/interfaces/http"
	"github.com/gcert-network/gcert-daemon/pkg/commitment"
	"github.com/gcert-network/gcert-daemon/pkg/keyring"
	"github.com/gcert-network/gcert-daemon/pkg/registry"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	seed, err := config.GetWalletSeed()
	if err != nil {
		log.WithError(err).Fatal("invalid wallet seed")
	}
	keys, err := keyring.NewFromSeed(seed)
	if err != nil {
		log.WithError(err).Fatal("cannot initialize keyring")
	}

	repoManager, err := dbbadger.NewDbManager(
		filepath.Join(config.GetDatadir(), config.DbLocation), nil,
	)
	if err != nil {
		log.WithError(err).Fatal("cannot open database")
	}
	defer repoManager.Close()

	registrySvc, err := registry.NewHTTPService(
		config.GetString(config.RegistryURLKey),
		config.GetInt(config.RegistryRequestsPerSecondKey),
	)
	if err != nil {
		log.WithError(err).Fatal("cannot initialize registry client")
	}

	params := commitment.NewParams()
	walletSvc := application.NewWalletService(repoManager, keys, params)
	orchestrator := application.NewOrchestrator(
		repoManager, registrySvc, keys, params,
		config.GetInt(config.MaxStepAttemptsKey),
		config.GetDuration(config.StepRetryDelayKey),
	)

	relay := application.NewOutboxRelay(
		repoManager,
		config.GetDuration(config.OutboxIntervalKey),
		config.GetInt(config.OutboxBatchSizeKey),
	)
	relay.RegisterHandler(
		domain.OutboxTypeResumeRoutingPlan,
		application.ResumeRoutingPlanHandler(orchestrator),
	)
	relay.RegisterHandler(
		domain.OutboxTypeNotifyReceiver,
		application.NotifyReceiverHandler(
			repoManager,
			notifier.NewWebhookNotifier(config.GetDuration(config.NotifyRequestTimeoutKey)),
			notifier.NewLocalNotifier(walletSvc),
		),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetInt(config.ListenPortKey)),
		Handler: httpinterface.NewHandler(walletSvc).Router(),
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Infof("json interface is listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		log.Info("outbox relay started")
		if err := relay.Start(ctx); err != context.Canceled {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("daemon started")
	if err := eg.Wait(); err != nil {
		log.WithError(err).Error("daemon exited with error")
		os.Exit(1)
	}
	log.Info("exiting")
}
