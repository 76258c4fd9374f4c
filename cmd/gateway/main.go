// cmd/gateway/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/alerting"
	"github.com/ProfDian/water-qual-sub000/internal/api"
	"github.com/ProfDian/water-qual-sub000/internal/auth"
	"github.com/ProfDian/water-qual-sub000/internal/buffer"
	"github.com/ProfDian/water-qual-sub000/internal/config"
	"github.com/ProfDian/water-qual-sub000/internal/notify"
	"github.com/ProfDian/water-qual-sub000/internal/quality"
	"github.com/ProfDian/water-qual-sub000/internal/reconciler"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
	"github.com/ProfDian/water-qual-sub000/internal/websocket"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	_ = godotenv.Load()
	if err := config.LoadConfig(*configPath); err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}
	cfg := &config.AppConfig

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// --- Store ---
	var store storage.Store
	switch cfg.Storage.Backend {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		mongoStore, err := storage.NewMongoStore(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		cancel()
		if err != nil {
			logrus.WithError(err).Fatal("could not initialise mongo store")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoStore.Close(ctx)
		}()
		store = mongoStore
	case "memory":
		store = storage.NewMemoryStore()
		logrus.Warn("using in-memory store; buffered entries do not survive restarts")
	default:
		logrus.Fatalf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// --- Components ---
	hub := websocket.NewHub()
	go hub.Run()

	channels := []notify.Channel{notify.LogChannel{}}
	if cfg.Notify.EmailEnabled {
		channels = append(channels, notify.NewEmailChannel(cfg.Notify.SMTP))
	}
	gateway := notify.NewGateway(channels...)
	gateway.Start()
	defer gateway.Stop()

	mergeWindow := time.Duration(cfg.Buffer.MergeWindowMinutes) * time.Minute
	reportWindow := time.Duration(cfg.Buffer.ReportWindowMinutes) * time.Minute

	scorer := quality.NewScorer(cfg.Quality)
	dispatcher := alerting.NewDispatcher(store, gateway, hub)
	rec := reconciler.New(store, scorer, dispatcher, mergeWindow)
	buf := buffer.NewIngestBuffer(store, mergeWindow)
	janitor := buffer.NewJanitor(store, reportWindow)
	authMgr := auth.NewManager(cfg.Auth)

	handler := api.NewHandler(buf, rec, janitor, store, hub, authMgr)

	// --- Janitor schedule ---
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Buffer.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := janitor.Sweep(ctx); err != nil {
			logrus.WithError(err).Error("scheduled sweep failed")
		}
	}); err != nil {
		logrus.WithError(err).Fatal("invalid sweep schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- HTTP servers ---
	dataServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.DataPort),
		Handler: api.SetupDataRouter(handler),
	}
	uiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.UIPort),
		Handler: api.SetupUIRouter(handler),
	}

	go func() {
		logrus.WithField("port", cfg.Server.DataPort).Info("starting data ingestion server")
		if err := dataServer.ListenAndServe(); err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("data server failed")
		}
	}()
	go func() {
		logrus.WithField("port", cfg.Server.UIPort).Info("starting websocket feed server")
		if err := uiServer.ListenAndServe(); err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("ui server failed")
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down servers")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dataServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("data server shutdown")
	}
	if err := uiServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("ui server shutdown")
	}

	logrus.Info("servers gracefully stopped")
}
