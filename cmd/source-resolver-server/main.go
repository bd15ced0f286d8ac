package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-semantic-release/source-resolver/internal/config"
	"github.com/go-semantic-release/source-resolver/internal/metrics"
	"github.com/go-semantic-release/source-resolver/internal/registry"
	"github.com/go-semantic-release/source-resolver/internal/resolver"
	"github.com/go-semantic-release/source-resolver/internal/server"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func run(log *logrus.Logger) error {
	cfg, err := config.NewResolverConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version

	ctx := context.Background()
	log.Println("setting up upstream clients...")
	clients, err := cfg.CreateClients(ctx)
	if err != nil {
		return err
	}

	log.Println("loading sources...")
	sourceConfigs, err := cfg.LoadSources()
	if err != nil {
		return err
	}
	reg, err := registry.NewFromConfig(sourceConfigs, clients)
	if err != nil {
		return err
	}
	log.Infof("registered %d sources", len(reg.Names()))

	log.Printf("opening %s state store...", cfg.StateBackend)
	store, closeStore, err := cfg.CreateStateStore(ctx)
	if err != nil {
		return err
	}

	if !cfg.DisableMetrics {
		log.Println("starting metrics exporter...")
		exporter, mErr := metrics.NewExporter(cfg)
		if mErr != nil {
			return mErr
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	log.Println("starting server...")
	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           server.New(log, resolver.New(log, reg), store, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-sigCtx.Done()
	stop()

	defer func() {
		log.Println("closing state store...")
		if err := closeStore(); err != nil {
			log.Error(err)
		}
	}()

	log.Println("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); errors.Is(err, context.DeadlineExceeded) {
		log.Println("closing server...")
		if closeErr := srv.Close(); closeErr != nil {
			return closeErr
		}
	} else if err != nil {
		return err
	}
	log.Println("server stopped!")
	return nil
}

func main() {
	log := setupLogger()
	if err := run(log); err != nil {
		log.Fatal(err)
	}
}
