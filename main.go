// Command socialapp serves the social network: accounts, posts, likes, comments
// and follows rendered as HTML pages.
//
// Configuration comes from the environment, optionally loaded from a .env file.
// Subcommands:
//
//	socialapp serve      run the HTTP server (default)
//	socialapp migrate    apply the PostgreSQL schema migrations
//	socialapp reconcile  run one reference repair pass and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/user/socialapp/background"
	"github.com/user/socialapp/config"
	"github.com/user/socialapp/db"
	"github.com/user/socialapp/router"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/memstore"
	"github.com/user/socialapp/store/mongostore"
	"github.com/user/socialapp/store/pgstore"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	app := &cli.App{
		Name:   "socialapp",
		Usage:  "a small social network served as HTML pages",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply PostgreSQL schema migrations",
				Action: migrate,
			},
			{
				Name:   "reconcile",
				Usage:  "repair follow edges and post lists once, then exit",
				Action: reconcile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("socialapp failed", "error", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore(s)

	handler, err := router.New(cfg, s)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	stopReconciler := make(chan struct{})
	reconcilerDone := background.StartReconcilerService(s, cfg.ReconcileInterval, stopReconciler)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("server shutting down", "signal", sig.String())
	case err := <-serverErr:
		close(stopReconciler)
		<-reconcilerDone
		return fmt.Errorf("server failed: %w", err)
	}

	close(stopReconciler)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-reconcilerDone

	slog.Info("server stopped gracefully")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to the %s store only, STORE_DRIVER is %s", config.DriverPostgres, cfg.Store.Driver)
	}
	return db.RunMigrations(cfg.Store.Postgres.DSN())
}

func reconcile(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore(s)

	report, err := background.RunReconcile(c.Context, s)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "repaired %d references (follow edges added %d, dangling edges removed %d, stale followers removed %d, post refs added %d, post refs removed %d)\n",
		report.Total(), report.FollowEdgesAdded, report.DanglingEdgesRemoved, report.StaleFollowersRemoved, report.PostRefsAdded, report.PostRefsRemoved)
	return nil
}

// closeStore releases the store connection, logging failures.
func closeStore(s store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// openStore connects the backend selected by STORE_DRIVER. The postgres backend
// migrates the schema before use.
func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := db.NewMongoClient(ctx, cfg.Store.Mongo)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, client, cfg.Store.Mongo.Database)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return s, nil

	case config.DriverPostgres:
		if err := db.RunMigrations(cfg.Store.Postgres.DSN()); err != nil {
			return nil, err
		}
		pool, err := db.NewPool(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, err
		}
		return pgstore.New(pool), nil

	case config.DriverMemory:
		slog.Warn("using the in-memory store, data is lost on exit")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
