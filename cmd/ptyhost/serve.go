package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ptyhost/ptyhost/api/handlers"
	"github.com/ptyhost/ptyhost/internal/config"
	"github.com/ptyhost/ptyhost/internal/db"
	"github.com/ptyhost/ptyhost/internal/metrics"
	"github.com/ptyhost/ptyhost/internal/repository"
	"github.com/ptyhost/ptyhost/internal/session"
	"github.com/ptyhost/ptyhost/internal/ws"
)

var serveFlags struct {
	addr        string
	dbPath      string
	logDir      string
	maxSessions int
	helper      string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over HTTP and WebSocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default :8080)")
	f.StringVar(&serveFlags.dbPath, "db", "", "SQLite database path")
	f.StringVar(&serveFlags.logDir, "log-dir", "", "directory for session recordings")
	f.IntVar(&serveFlags.maxSessions, "max-sessions", 0, "maximum concurrently running sessions")
	f.StringVar(&serveFlags.helper, "helper", "", "pre-exec helper program")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags copies the serve flags the user set into cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Lookup("addr") == nil {
		return
	}
	if f.Changed("addr") {
		cfg.Addr = serveFlags.addr
	}
	if f.Changed("db") {
		cfg.DBPath = serveFlags.dbPath
	}
	if f.Changed("log-dir") {
		cfg.LogDir = serveFlags.logDir
	}
	if f.Changed("max-sessions") {
		cfg.MaxSessions = serveFlags.maxSessions
	}
	if f.Changed("helper") {
		cfg.HelperPath = serveFlags.helper
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logrus.WithField("component", "server")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	m := metrics.New()
	sessionManager := session.NewManager(repository.NewSessionRepository(database), session.Config{
		LogDir:         cfg.LogDir,
		MaxSessions:    cfg.MaxSessions,
		Cols:           cfg.Cols,
		Rows:           cfg.Rows,
		HelperPath:     cfg.HelperPath,
		DrainTimeout:   cfg.DrainTimeout,
		RingBufferSize: cfg.RingBufferSize,
		Metrics:        m,
	})
	if err := sessionManager.Recover(cmd.Context()); err != nil {
		return err
	}

	wsService := ws.NewService(sessionManager)
	sessionManager.SetObserver(wsService)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.NewRouter(sessionManager, wsService, m),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	wsService.Close()
	sessionManager.Close()
	return nil
}
