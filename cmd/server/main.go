package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nemanja-m/parmr/internal/api/grpc"
	"github.com/nemanja-m/parmr/internal/api/rest"
	"github.com/nemanja-m/parmr/internal/runs/service"
	"github.com/nemanja-m/parmr/internal/runs/storage"
	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	"github.com/nemanja-m/parmr/internal/shared/telemetry"

	_ "github.com/nemanja-m/parmr/examples/anagram"
	_ "github.com/nemanja-m/parmr/examples/grep"
	_ "github.com/nemanja-m/parmr/examples/wordcount"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLoggerTo(os.Stdout, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("Failed to set up telemetry", "error", err)
	}

	runService := service.NewRunService(storage.NewInMemoryRunStore(), logger, service.Options{
		OutputDir:     cfg.Output.Dir,
		Partitions:    cfg.Output.Partitions,
		InputRoot:     cfg.Input.Root,
		EngineOptions: providers.EngineOptions(),
	})

	restServer := rest.NewServer(cfg.REST, runService, logger)
	grpcServer := grpc.NewServer(cfg.GRPC, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting REST API server", "addr", cfg.REST.Addr)
		if err := restServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.Stop()
		return errors.Join(
			restServer.Shutdown(shutdownCtx),
			runService.Shutdown(shutdownCtx),
			providers.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	logger.Info("Server stopped")
}
