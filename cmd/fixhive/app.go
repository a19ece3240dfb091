package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kalambet/fixhive/internal/config"
	"github.com/kalambet/fixhive/internal/engine"
	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/service"
	"github.com/kalambet/fixhive/internal/similarity"
	"github.com/kalambet/fixhive/internal/storage"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg     config.Config
	store   *storage.Store
	gateway remote.Gateway
	svc     *service.Service
}

type openOptions struct {
	remote    bool // connect the remote gateway when configured
	generator bool // select a text generator for ranking
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))
	return cfg, nil
}

func remoteOptions(cfg config.Config) remote.Options {
	return remote.Options{
		URL:         cfg.Remote.URL,
		Key:         cfg.Remote.Key,
		DatabaseURL: cfg.Remote.DatabaseURL,
		RateLimit:   cfg.Remote.RateLimit,
		Timeout:     cfg.RemoteTimeout(),
		RedisURL:    cfg.Cache.RedisURL,
		CacheTTL:    cfg.CacheTTL(),
	}
}

func openApp(ctx context.Context, opts openOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a := &app{cfg: cfg, store: store}

	if opts.remote {
		gw, err := remote.Open(ctx, remoteOptions(cfg))
		if err != nil {
			slog.Warn("remote store unreachable, running local-only", "error", err)
		} else if gw != nil {
			a.gateway = gw
		}
	}

	var ranker *similarity.Ranker
	if opts.generator {
		ranker = similarity.NewRanker(selectGenerator(ctx, cfg))
	}

	a.svc = service.New(store, a.gateway, ranker, cfg.Contributor.ID)
	return a, nil
}

// selectGenerator picks the configured text generator. A nil result means
// ranking by keywords.
func selectGenerator(ctx context.Context, cfg config.Config) engine.Generator {
	gen, err := engine.Select(ctx, engine.SelectConfig{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		OllamaBaseURL:   cfg.Ollama.BaseURL,
		AnthropicAPIKey: cfg.Anthropic.APIKey,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoGenerator) {
			slog.Info("no text generator available, ranking by keywords", "reason", err)
		} else {
			slog.Warn("text generator selection failed, ranking by keywords", "error", err)
		}
		return nil
	}

	if og, ok := gen.(*engine.OllamaGenerator); ok {
		if err := og.EnsureReady(ctx, os.Stderr); err != nil {
			slog.Warn("ollama not ready, ranking by keywords", "error", err)
			return nil
		}
	}
	slog.Info("text generator selected", "generator", gen.Name())
	return gen
}

func (a *app) Close() {
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			slog.Warn("closing remote gateway", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}
