package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskdeck/internal/config"
	"taskdeck/internal/logging"
	"taskdeck/internal/remote"
	"taskdeck/internal/storage"
	"taskdeck/internal/store"
	"taskdeck/internal/ui"
)

func main() {
	configPath := config.ResolveConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logFile, err := logging.Setup(cfg.Env, cfg.LogPath)
	if err != nil {
		fmt.Printf("failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var backend store.Backend
	switch cfg.Mode {
	case config.ModeEmbedded:
		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			fmt.Printf("failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		backend = storage.NewLocal(db, cfg.Server.TokenTTL.Duration)
	default:
		client, err := remote.New(cfg.Backend.URL, cfg.Backend.APIKey)
		if err != nil {
			fmt.Printf("failed to set up backend client: %v\n", err)
			os.Exit(1)
		}
		backend = client
	}
	log.WithField("mode", cfg.Mode).Info("starting client")

	if err := ui.Run(ctx, backend, cfg, log); err != nil {
		log.WithError(err).Error("ui exited")
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}
