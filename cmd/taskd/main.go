// Command taskd serves the task backend over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taskdeck/internal/backend"
	"taskdeck/internal/config"
	"taskdeck/internal/logging"
	"taskdeck/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Env, os.Stderr)
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	secret := []byte(cfg.Server.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.WithError(err).Fatal("generate jwt secret")
		}
		log.Warn("server.jwt_secret not set; sessions will not survive a restart")
	}
	if cfg.Backend.APIKey == "" {
		log.Warn("backend.api_key not set; the apikey header is not checked")
	}

	srv := backend.New(db, log, backend.Options{
		APIKey:    cfg.Backend.APIKey,
		JWTSecret: secret,
		TokenTTL:  cfg.Server.TokenTTL.Duration,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.Info("stopped")
}
