package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit_notifier/assets"
	"habit_notifier/internal/app"
	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/assetcache"
	"habit_notifier/internal/infra/clock"
	"habit_notifier/internal/infra/config"
	"habit_notifier/internal/infra/console"
	idb "habit_notifier/internal/infra/database"
	"habit_notifier/internal/infra/desktop"
	"habit_notifier/internal/infra/httpapi"
	"habit_notifier/internal/infra/logger"
	"habit_notifier/internal/infra/mongodb"
	"habit_notifier/internal/infra/scheduler"
	"habit_notifier/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Habit notifier starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"store":   cfg.StoreDriver,
		"channel": cfg.Channel,
		"user_id": cfg.UserID,
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open notification store")
	}
	defer closeStore()
	mainLogger.WithField("driver", cfg.StoreDriver).Info("Notification store connected")

	// Delivery channel
	var (
		channel    delivery.Channel
		bot        *telebot.Bot
		tgChannel  *telegram.Channel
		dbusServer *desktop.SessionServer
		dbusChan   *desktop.Channel
	)
	switch cfg.Channel {
	case config.ChannelTelegram:
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Chat() != nil {
					entry = entry.WithField("chat_id", c.Chat().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		// the configured chat id is the standing consent; /mute revokes it
		tgChannel = telegram.NewChannel(bot, cfg.TelegramChatID, cfg.TelegramRatePerSec, delivery.PermissionGranted, logger.Component("telegram"))
		channel = tgChannel
	case config.ChannelDesktop:
		dbusServer, err = desktop.NewSessionServer()
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to the desktop notification server")
		}
		defer dbusServer.Disconnect() // nolint: errcheck
		dbusChan = desktop.NewChannel(dbusServer, logger.Component("desktop"))
		channel = dbusChan
	default:
		channel = console.NewChannel(logger.Component("console"))
	}
	mainLogger.WithField("channel", cfg.Channel).Info("Delivery channel initialized")

	// Worker
	cache := assetcache.New(cfg.CacheDir, cfg.CacheName, assets.FS, assets.List(), logger.Component("assetcache"))
	schedulerSvc := app.NewSchedulerService(repo, channel, clock.Real{}, logger.Component("scheduler"), app.SchedulerConfig{
		UserID:           cfg.UserID,
		Icon:             cache.Path(assets.Icon),
		Badge:            cache.Path(assets.Badge),
		MissedFireGrace:  cfg.MissedFireGrace,
		CatchUpTolerance: cfg.CatchUpTolerance,
		StoreTimeout:     cfg.StoreTimeout,
		DeliveryTimeout:  cfg.DeliveryTimeout,
	})
	router := app.NewInteractionRouter(repo, channel, schedulerSvc, clock.Real{}, cfg.AppBaseURL, cfg.StoreTimeout, logger.Component("router"))
	worker := app.NewWorker(repo, schedulerSvc, router, cache, cfg.DefaultsOnStart, logger.Component("worker"))
	schedulerSvc.SetSink(worker)

	if err := worker.Activate(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not activate worker")
	}
	go worker.Run(ctx)

	wake := scheduler.NewWakeScheduler(worker, logger.Component("wake"), cfg.WakeCronSpec, cfg.StoreTimeout+cfg.DeliveryTimeout)
	if err := wake.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start wake scheduler")
	}

	// Inbound surfaces
	var api *httpapi.Server
	if cfg.HTTPAddr != "" {
		api = httpapi.NewServer(cfg.HTTPAddr, worker, repo, schedulerSvc, channel, logger.Component("httpapi"))
		go func() {
			if err := api.ListenAndServe(); err != nil {
				mainLogger.WithError(err).Error("Control API stopped")
			}
		}()
	}

	if bot != nil {
		tgLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(ctx, bot, tgChannel, worker, tgLogger)
		telegram.RegisterSettingsHandlers(ctx, bot, repo, schedulerSvc, worker, cfg.TelegramChatID, tgLogger)
		telegram.RegisterCallbackHandlers(ctx, bot, worker, cfg.TelegramChatID, tgLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	if dbusChan != nil {
		signals, err := dbusServer.Signals()
		if err != nil {
			mainLogger.WithError(err).Warn("Notification clicks will not be received")
		} else {
			go dbusChan.Listen(ctx, signals, worker)
		}
	}

	mainLogger.WithField("armed", len(schedulerSvc.Armed())).Info("Application setup complete")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	wake.Stop()
	if api != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := api.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Control API shutdown")
		}
		cancelShutdown()
	}
	if bot != nil {
		bot.Stop()
	}
	cancel()
	schedulerSvc.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func openStore(ctx context.Context, cfg *config.AppConfig) (notification.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return idb.NewSQLNotificationRepository(db, idb.DialectPostgres), func() { db.Close() }, nil
	case config.StoreMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(dctx) // nolint: errcheck
		}
		return mongodb.NewNotificationRepository(client.Database()), closeFn, nil
	default:
		db, err := idb.NewSQLiteConnection(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return idb.NewSQLNotificationRepository(db, idb.DialectSQLite), func() { db.Close() }, nil
	}
}
