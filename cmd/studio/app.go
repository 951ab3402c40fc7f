package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/config"
	"brandviz.io/studio/internal/core"
	"brandviz.io/studio/internal/download"
	"brandviz.io/studio/internal/store"
	"brandviz.io/studio/internal/workflow"
)

// app holds the wired services one command runs against.
type app struct {
	client      *client.Client
	history     *store.SQLiteStore
	llm         *core.LLMService
	state       *workflow.Studio
	preferences *core.PreferenceService
	studio      *core.StudioService
	downloader  *download.Downloader
	logger      *zap.Logger
}

// newApp wires the client and services. The history database is only
// opened when withHistory is set; a failure to open it is logged and the
// app runs without history.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, withHistory bool) (*app, error) {
	c, err := client.New(client.Config{
		BaseURL:      cfg.APIBaseURL,
		BypassHeader: cfg.BypassHeader,
		Timeout:      cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	a := &app{client: c, logger: logger, state: workflow.New(cfg.DefaultThreshold)}

	var history core.History
	if withHistory {
		a.history, err = store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("Local history disabled", zap.String("database", cfg.DatabaseURL), zap.Error(err))
		} else {
			history = a.history
		}
	}

	var summarizer core.Summarizer
	a.llm, err = core.NewLLMService(ctx, cfg.GeminiAPIKey, logger)
	switch {
	case errors.Is(err, core.ErrSummarizerDisabled):
		logger.Debug("Group summarizer disabled")
	case err != nil:
		logger.Warn("Group summarizer unavailable", zap.Error(err))
	default:
		summarizer = a.llm
	}

	a.preferences = core.NewPreferenceService(c, history, logger)
	a.studio = core.NewStudioService(c, a.state, history, summarizer, cfg.DefaultVariations, logger)
	a.downloader = download.New(download.Config{
		Dir:          cfg.DownloadDir,
		BypassHeader: cfg.BypassHeader,
		HTTPClient:   c.HTTPClient(),
	}, logger)
	return a, nil
}

func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Error closing history database", zap.Error(err))
		}
	}
}
