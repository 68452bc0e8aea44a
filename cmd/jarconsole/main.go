package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"jarconsole/internal/buildinfo"
	"jarconsole/internal/config"
	"jarconsole/internal/jarclient"
	"jarconsole/internal/logging"
	"jarconsole/internal/metrics"
	"jarconsole/internal/models"
	"jarconsole/internal/poller"
	"jarconsole/internal/server"
	"jarconsole/internal/storage"
)

// openLog is swapped in tests.
var openLog = logging.Open

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the web server (overrides listen_addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jarconsole: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx is done. Every deferred cleanup has run by the time it
// returns.
func run(ctx context.Context, cfg config.Config) error {
	out, closer, err := openLog(cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()
	logger := logging.NewLogger(out, "jarconsole", cfg)

	store, err := storage.NewHistoryStorage(cfg.HistoryPath(), cfg.HistoryLimit)
	if err != nil {
		logger.Error().Err(err).Msg("initialise storage")
		return fmt.Errorf("initialise storage: %w", err)
	}

	client := jarclient.New(cfg.PanelURL, cfg.APIKey, jarclient.WithTimeout(cfg.RequestTimeout()))
	collector := metrics.NewCollector(nil)

	poll := poller.New(client, poller.NewList(), poller.Options{
		Logger: logger.With().Str("component", "poller").Logger(),
		OnResult: func(r poller.Result) {
			collector.ObservePoll(string(r))
		},
	})
	poll.OnUpdate(func(entry models.StatusEntry) {
		collector.ObserveList(entry)
		if _, err := store.Record(entry); err != nil {
			logger.Warn().Err(err).Msg("record status history")
		}
	})
	poll.Start()
	defer poll.Stop()

	srv := server.New(server.Options{
		Addr:         cfg.ListenAddr,
		Poller:       poll,
		Actions:      client,
		Storage:      store,
		Metrics:      collector,
		Logger:       logger.With().Str("component", "http").Logger(),
		HistoryLimit: cfg.HistoryLimit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Dur("poll_period", poll.Period()).
			Bool("production", buildinfo.Production()).
			Msg("jarconsole listening")
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("jarconsole stopped with error")
		return err
	}
	logger.Info().Msg("jarconsole stopped")
	return nil
}
