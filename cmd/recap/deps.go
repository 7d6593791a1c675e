package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nugget/recap/internal/cache"
	"github.com/nugget/recap/internal/config"
	"github.com/nugget/recap/internal/connwatch"
	"github.com/nugget/recap/internal/embeddings"
	"github.com/nugget/recap/internal/llm"
	"github.com/nugget/recap/internal/media"
	"github.com/nugget/recap/internal/recap"
	"github.com/nugget/recap/internal/retrieval"
	"github.com/nugget/recap/internal/usage"
)

// deps is the wired pipeline shared by serve and the one-shot commands.
type deps struct {
	service *recap.Service
	cache   *cache.Cache
	usage   *usage.Store

	// probes check each model backend, keyed by name.
	probes map[string]connwatch.Probe
}

// Close releases the SQLite databases that were opened.
func (d *deps) Close() {
	if d.cache != nil {
		d.cache.Close()
	}
	if d.usage != nil {
		d.usage.Close()
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newDeps builds the LLM client, embedder, video cache and media client
// from cfg and ties them into a recap.Service.
func newDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{probes: make(map[string]connwatch.Probe)}
	client := createLLMClient(cfg, logger, d.probes)

	var mediaCache media.Cache
	if path := cfg.CachePath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		c, err := cache.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open video cache: %w", err)
		}
		if n, err := c.Prune(ctx, cfg.Media.CacheMaxAge); err != nil {
			logger.Warn("video cache prune failed", "error", err)
		} else if n > 0 {
			logger.Info("pruned video cache", "removed", n)
		}
		d.cache = c
		mediaCache = c
		logger.Info("video cache opened", "path", path)

		u, err := usage.Open(cfg.UsagePath())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open usage store: %w", err)
		}
		d.usage = u
		client = usage.NewMeter(client, u, cfg.Models.Pricing, logger)
	} else {
		logger.Info("video cache and usage tracking disabled (no data_dir)")
	}

	embedder := createEmbedder(cfg, logger)
	if p, ok := embedder.(pinger); ok {
		d.probes["embeddings"] = p.Ping
	}

	fetcher := media.New(media.Config{
		YtDlpPath:        cfg.Media.YtDlpPath,
		CookiesFile:      cfg.Media.CookiesFile,
		SubtitleLanguage: cfg.Media.SubtitleLanguage,
		TranscriptDir:    cfg.Media.TranscriptDir,
		CacheMaxAge:      cfg.Media.CacheMaxAge,
	}, mediaCache, logger)

	d.service = recap.New(recap.Config{
		SummaryModel: cfg.Models.Summary,
		QAModel:      cfg.Models.QA,
		PromptBudget: cfg.Chunking.PromptBudget,
		EmbedBudget:  cfg.Chunking.EmbedBudget,
		Search: retrieval.SearchOptions{
			K:      cfg.Retrieval.K,
			FetchK: cfg.Retrieval.FetchK,
			Lambda: cfg.Retrieval.Lambda,
		},
		Options: llm.Options{
			Temperature: cfg.Models.Temperature,
			MaxTokens:   cfg.Models.MaxTokens,
		},
	}, fetcher, client, embedder, logger)

	return d, nil
}

// createLLMClient builds a multi-provider LLM client from the
// configuration. Models listed in models.openai_models always go to
// OpenAI; every other model goes to models.provider. Each provider's
// Ping is added to probes.
func createLLMClient(cfg *config.Config, logger *slog.Logger, probes map[string]connwatch.Probe) llm.Client {
	var openaiClient *llm.OpenAIClient
	if cfg.OpenAI.Configured() {
		openaiClient = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
		probes["openai"] = openaiClient.Ping
	}

	var fallback llm.Client
	if cfg.Models.Provider == "openai" {
		fallback = openaiClient
	} else {
		ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
		probes["ollama"] = ollama.Ping
		fallback = ollama
	}

	multi := llm.NewMultiClient(fallback)
	multi.AddProvider(cfg.Models.Provider, fallback)
	if openaiClient != nil {
		multi.AddProvider("openai", openaiClient)
		logger.Info("OpenAI provider configured", "base_url", cfg.OpenAI.BaseURL)
	}
	for _, m := range cfg.Models.OpenAIModels {
		multi.AddModel(m, "openai")
	}

	logger.Info("LLM client initialized",
		"provider", cfg.Models.Provider,
		"summary_model", cfg.Models.Summary,
		"qa_model", cfg.Models.QA,
	)
	return multi
}

// createEmbedder returns the configured embedder, or nil when embeddings
// are disabled. Without one, question answering reports an error.
func createEmbedder(cfg *config.Config, logger *slog.Logger) embeddings.Embedder {
	if !cfg.Embeddings.Enabled {
		logger.Info("embeddings disabled, question answering unavailable")
		return nil
	}
	logger.Info("embeddings enabled", "provider", cfg.Embeddings.Provider, "model", cfg.Embeddings.Model)
	if cfg.Embeddings.Provider == "openai" {
		return embeddings.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Embeddings.Model)
	}
	return embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	}, logger)
}
