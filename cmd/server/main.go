package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaptermaps/institution-service/internal/server"
	"github.com/chaptermaps/institution-service/pkg/config"
	"github.com/chaptermaps/institution-service/pkg/logger"
	"github.com/chaptermaps/institution-service/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("institution-service")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger.ToLoggerConfig())

	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		log.Fatal("failed to initialize telemetry", "error", err)
	}
	defer tel.Close()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("failed to create server", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
