package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/expertly/inbox/internal/api"
	"github.com/expertly/inbox/internal/app"
	"github.com/expertly/inbox/internal/cache"
	"github.com/expertly/inbox/internal/credential"
	"github.com/expertly/inbox/internal/inbox"
	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "expertly-inbox: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := model.DefaultConfigPath()
	if v := os.Getenv("EXPERTLY_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Quiet runtime logging goes to a file; the terminal belongs to
	// the TUI.
	logPath := filepath.Join(filepath.Dir(configPath), "inbox.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		defer f.Close()
		log.SetOutput(f)
	}

	token, err := credential.Get(credential.SessionTokenKey)
	if err != nil {
		log.Printf("reading session token: %v", err)
	}

	apiClient := api.NewClient(cfg.API.BaseURL, token, cfg.APITimeout())

	streamClient := stream.NewClient(stream.Options{
		URL:         cfg.Stream.URL,
		Token:       token,
		BackoffBase: cfg.BackoffBase(),
		BackoffCap:  cfg.BackoffCap(),
	})

	cachePath := cfg.Cache.Path
	if cachePath == "" {
		cachePath = model.DefaultCachePath()
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		log.Printf("creating cache directory: %v", err)
	}
	var snapshotCache inbox.SnapshotCache
	if c, err := cache.New(cachePath); err != nil {
		log.Printf("opening snapshot cache: %v", err)
	} else {
		defer c.Close()
		snapshotCache = c
	}

	engine := inbox.NewEngine(inbox.Options{
		API:               apiClient,
		Stream:            streamClient,
		Cache:             snapshotCache,
		SnapshotLimit:     cfg.API.SnapshotLimit,
		FeedPageSize:      cfg.Feed.PageSize,
		FeedPageIncrement: cfg.Feed.PageIncrement,
	})
	defer engine.Stop()

	root := app.New(ctx, app.Options{
		Engine:   engine,
		Stream:   streamClient,
		SetToken: apiClient.SetToken,
		Token:    token,
	})

	program := tea.NewProgram(root, tea.WithAltScreen())

	// Coin balance toasts live outside the aggregation core; they ride
	// the same connection through the subscription registry.
	coinToken := streamClient.Subscribe("coinUpdate", func(data json.RawMessage) {
		var payload struct {
			Balance *int `json:"balance"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.Balance == nil {
			return
		}
		program.Send(app.ToastMsg{
			Text: fmt.Sprintf("Coin balance: %d", *payload.Balance),
		})
	})
	defer streamClient.Unsubscribe(coinToken)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
