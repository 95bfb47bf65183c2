package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/critic-scm/critic/internal/api"
	"github.com/critic-scm/critic/internal/background"
	"github.com/critic-scm/critic/internal/config"
	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/review"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: criticd <command>\n\nCommands:\n  serve    Start the review engine\n  migrate  Run database migrations\n")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "migrate":
		cmdMigrate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServe(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	traceShutdown, err := initTracing(context.Background())
	if err != nil {
		slog.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(ctx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	gw, err := database.Open(context.Background(), cfg.Database.DSN)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	// Auto-migrate on startup
	if err := gw.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}

	broker := pubsub.NewBroker()
	outbox := pubsub.NewOutbox(broker)
	interval, _ := cfg.PollInterval()

	manager := background.NewManager(slog.Default())
	if err := registerServices(manager, cfg, gw, outbox, interval); err != nil {
		slog.Error("register services", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(gw, slog.Default())
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		slog.Info("criticd listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	if err := manager.Start(ctx); err != nil {
		slog.Error("background services", "error", err)
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}

// registerServices wires the engine's background loops. A process can
// be restricted to a subset with services.enabled; the default runs
// everything in one process.
func registerServices(manager *background.Manager, cfg *config.Config, gw *database.Gateway, outbox *pubsub.Outbox, interval time.Duration) error {
	enabled := func(name string) bool {
		if len(cfg.Services.Enabled) == 0 {
			return true
		}
		for _, candidate := range cfg.Services.Enabled {
			if candidate == name {
				return true
			}
		}
		return false
	}

	loops := []background.LoopFunc{
		{
			ServiceName: background.ServicePubSub,
			Interval:    interval,
			Work: func(ctx context.Context) error {
				return outbox.FlushPending(ctx, gw)
			},
		},
		{
			ServiceName: background.ServiceBranchTracker,
			Interval:    interval,
			Work: func(ctx context.Context) error {
				// Fetching tracked branches needs the git host; this
				// process only keeps the schedule alive.
				return nil
			},
		},
		{
			ServiceName: background.ServiceBranchUpdater,
			Interval:    interval,
			Work:        func(ctx context.Context) error { return nil },
		},
		{
			ServiceName: background.ServiceReviewUpdater,
			Interval:    interval,
			Work: func(ctx context.Context) error {
				return review.RunUpdater(ctx, gw, slog.Default())
			},
		},
		{
			ServiceName: background.ServiceDifferenceEngine,
			Interval:    interval,
			Work:        func(ctx context.Context) error { return nil },
		},
	}
	for _, loop := range loops {
		if !enabled(loop.ServiceName) {
			continue
		}
		if err := manager.Register(loop); err != nil {
			return err
		}
	}
	return nil
}

func cmdMigrate(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	gw, err := database.Open(context.Background(), cfg.Database.DSN)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	if err := gw.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete")
}
