package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"jarconsole/internal/config"
	"jarconsole/internal/jarclient"
	"jarconsole/internal/logging"
	"jarconsole/internal/poller"
	"jarconsole/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	// The terminal belongs to the UI, so logs always go to a file.
	if cfg.LogFile == "" {
		if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "ensure data directory: %v\n", err)
			os.Exit(1)
		}
		cfg.LogFile = filepath.Join(cfg.DataDirectory, "jartop.log")
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "jartop: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	out, closer, err := logging.Open(cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()
	logger := logging.NewLogger(out, "jartop", cfg)

	client := jarclient.New(cfg.PanelURL, cfg.APIKey, jarclient.WithTimeout(cfg.RequestTimeout()))
	poll := poller.New(client, poller.NewList(), poller.Options{
		Logger: logger.With().Str("component", "poller").Logger(),
	})
	defer poll.Stop()

	model := tui.New(poll, client)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error().Err(err).Msg("terminal ui failed")
		return err
	}
	return nil
}
