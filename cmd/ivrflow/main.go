package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flowpbx/ivrflow/internal/api"
	"github.com/flowpbx/ivrflow/internal/auth"
	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/flowpbx/ivrflow/internal/config"
	"github.com/flowpbx/ivrflow/internal/database"
	"github.com/flowpbx/ivrflow/internal/database/pgstore"
	"github.com/flowpbx/ivrflow/internal/database/redisstore"
	"github.com/flowpbx/ivrflow/internal/metrics"
	"github.com/flowpbx/ivrflow/internal/voice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// contactStore is a contact repository that owns its connection.
type contactStore interface {
	database.ContactRepository
	io.Closer
}

func main() {
	startTime := time.Now()

	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting ivrflow",
		"http_port", cfg.HTTPPort,
		"store", cfg.Store,
		"play_file_base_url", cfg.PlayFileBaseURL,
	)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open contact store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to decode jwt secret", "error", err)
		os.Exit(1)
	}
	if cfg.AdminPasswordHash == "" {
		slog.Warn("no admin password hash configured, operator api tokens cannot be issued")
	}

	engine := callflow.NewEngine(store, logger)
	renderer := &voice.Renderer{
		BaseURL:       cfg.PlayFileBaseURL,
		Extension:     cfg.PlayFileExtension,
		GatherTimeout: cfg.GatherTimeout,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	handler := api.NewServer(cfg, engine, renderer, jwtSecret, metricsHandler, logger)
	defer handler.Close()
	registry.MustRegister(metrics.NewCollector(store, engine, handler, startTime, logger))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("ivrflow stopped")
}

// hashPassword reads a password from the first line of in and writes its
// argon2id hash for use as admin-password-hash.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// openStore opens the contact store selected by cfg.Store.
func openStore(cfg *config.Config) (contactStore, error) {
	switch cfg.Store {
	case "postgres":
		return pgstore.New(cfg.PostgresDSN)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return redisstore.New(ctx, cfg.RedisURL)
	default:
		db, err := database.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return &sqliteStore{ContactRepository: database.NewContactRepository(db), db: db}, nil
	}
}

// sqliteStore ties the sqlite contact repository to its database handle.
type sqliteStore struct {
	database.ContactRepository
	db *database.DB
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
