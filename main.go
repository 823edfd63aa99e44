package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/tabeth/memq/config"
	"github.com/tabeth/memq/logging"
	"github.com/tabeth/memq/server"
	"github.com/tabeth/memq/store"
)

const module = "memq"

// The write timeout must outlast the longest ReceiveMessage wait (20s).
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("read config: %v", err)
	}
	logging.Init(module, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.WithFields(logging.Fields{"event": "server_failed"}).Fatal(err)
	}
	logging.WithFields(logging.Fields{"event": "shutdown_complete"}).Info("bye")
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	s := store.NewMemoryStore(store.Options{
		Clock:           clockwork.NewRealClock(),
		Region:          cfg.Identity.Region,
		AccountID:       cfg.Identity.AccountID,
		Host:            net.JoinHostPort("localhost", cfg.Server.Port),
		PurgeCooldown:   cfg.PurgeCooldown(),
		DedupWindow:     cfg.DedupWindow(),
		MaxBatchEntries: cfg.Engine.MaxBatchEntries,
		MaxBatchBytes:   cfg.Engine.MaxBatchBytes,
		DefaultMoveRate: cfg.Engine.DefaultMoveRate,
	})
	defer s.Close()

	app := &server.App{
		Store:       s,
		AuthEnabled: cfg.Auth.Enabled,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		AdminAPIKey: cfg.Auth.AdminAPIKey,
	}
	srv := newHTTPServer(":"+cfg.Server.Port, app.Routes())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.WithFields(logging.Fields{
			"event":   "server_start",
			"addr":    srv.Addr,
			"auth":    cfg.Auth.Enabled,
			"account": cfg.Identity.AccountID,
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.WithFields(logging.Fields{"event": "ctx_cancel"}).Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
