package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/chat"
	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/embedding"
	"github.com/hyperjump/groundchat/internal/history"
	"github.com/hyperjump/groundchat/internal/keyword"
	"github.com/hyperjump/groundchat/internal/llm"
	"github.com/hyperjump/groundchat/internal/metrics"
	"github.com/hyperjump/groundchat/internal/retrieval"
	"github.com/hyperjump/groundchat/internal/rewrite"
	"github.com/hyperjump/groundchat/internal/storage"
	"github.com/hyperjump/groundchat/internal/vector"
	"github.com/hyperjump/groundchat/internal/web"
)

// Components holds initialized services.
type Components struct {
	Store    *storage.SQLiteStore
	History  *history.Manager
	Embedder embedding.Embedder
	// Local is set when the retrieval backend is the in-process index.
	Local     *retrieval.LocalStore
	Retriever retrieval.Client
	Service   *chat.Service
	Metrics   *metrics.Metrics
}

// Close releases storage and indices.
func (c *Components) Close() {
	if c.Local != nil {
		_ = c.Local.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// DocCount returns the indexed document count, or nil when the backend is remote.
func (c *Components) DocCount() interface{ Count() (uint64, error) } {
	if c.Local == nil {
		return nil
	}
	return c.Local
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Components, error) {
	c := &Components{Metrics: metrics.New(reg)}

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store
	c.History = history.NewManager(store, history.WithLogger(logger))

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}
	provider := llm.NewOpenAIProvider(client, llm.WithLogger(logger), llm.WithCompleteTimeout(cfg.LLM.Timeout))

	if err := initializeRetrieval(c, cfg, logger, client); err != nil {
		c.Close()
		return nil, err
	}

	rewriter, err := rewrite.NewRewriter(provider, cfg.LLM.ModelFor(cfg.Rewrite.ModelTier), cfg.Prompts,
		rewrite.WithLogger(logger),
		rewrite.WithMetrics(c.Metrics),
		rewrite.WithMinLength(cfg.Rewrite.MinLength),
		rewrite.WithHistoryTurns(cfg.Rewrite.HistoryTurns),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize rewriter: %w", err)
	}

	deps := chat.Deps{
		Provider: provider,
		History:  c.History,
		Planner:  rewriter,
	}
	if c.Retriever != nil {
		deps.Retriever = c.Retriever
	}
	if researcher := initializeResearcher(cfg, logger, c.Metrics); researcher != nil {
		deps.Researcher = researcher
	}

	svc, err := chat.NewService(cfg, deps, chat.WithLogger(logger), chat.WithMetrics(c.Metrics))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}
	c.Service = svc
	return c, nil
}

func initializeEmbedder(cfg *config.Config, client *openai.Client) embedding.Embedder {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		base = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		base = embedding.NewOpenAIEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	return embedding.NewCachedEmbedder(base, cfg.Embedding.CacheSize)
}

func initializeRetrieval(c *Components, cfg *config.Config, logger *zap.Logger, client *openai.Client) error {
	switch cfg.Retrieval.Backend {
	case "weaviate":
		wc := cfg.Retrieval.Weaviate
		wclient, err := retrieval.NewWeaviateClient(wc.Scheme, wc.Host, envOrEmpty(wc.APIKeyEnv))
		if err != nil {
			return fmt.Errorf("failed to initialize weaviate: %w", err)
		}
		var embedder embedding.Embedder
		if !wc.NearText {
			embedder = initializeEmbedder(cfg, client)
			c.Embedder = embedder
		}
		c.Retriever = retrieval.NewWeaviateStore(wclient, wc.ClassName, embedder)
		logger.Info("retrieval backend initialized",
			zap.String("backend", "weaviate"),
			zap.String("host", wc.Host),
			zap.Bool("near_text", wc.NearText))
		return nil
	default:
		embedder := initializeEmbedder(cfg, client)
		c.Embedder = embedder
		vec, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
		if err != nil {
			return fmt.Errorf("failed to initialize vector index: %w", err)
		}
		if cfg.Storage.VectorIndexPath != "" {
			if loadErr := vec.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
				logger.Warn("vector index load skipped",
					zap.String("path", cfg.Storage.VectorIndexPath),
					zap.Error(loadErr))
			}
		}
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		if err != nil {
			_ = vec.Close()
			return fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.Local = retrieval.NewLocalStore(kw, vec, embedder,
			retrieval.WithLogger(logger),
			retrieval.WithWeights(cfg.Retrieval.KeywordWeight, cfg.Retrieval.SemanticWeight))
		c.Retriever = c.Local
		logger.Info("retrieval backend initialized",
			zap.String("backend", "local"),
			zap.Int("vectors", vec.Size()))
		return nil
	}
}

// initializeResearcher returns nil when web search is not usable, in which case the
// web strategy answers ungrounded.
func initializeResearcher(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *web.Researcher {
	wc := cfg.Web
	searchClient := &http.Client{Timeout: wc.SearchTimeout}

	var searcher web.Searcher
	switch wc.Searcher {
	case "duckduckgo":
		searcher = web.NewDuckDuckGoSearcher(wc.DuckDuckGoURL, wc.UserAgent, wc.MaxPages, wc.RequestsPerSecond, searchClient)
	default:
		key := envOrEmpty(wc.BingAPIKeyEnv)
		if key == "" {
			logger.Warn("web search disabled: bing api key not set", zap.String("env", wc.BingAPIKeyEnv))
			return nil
		}
		searcher = web.NewBingSearcher(wc.BingEndpoint, key, wc.Market, wc.MaxPages, wc.RequestsPerSecond, searchClient)
	}

	var fetcher web.Fetcher
	switch wc.Fetcher {
	case "http":
		fetcher = web.NewHTTPFetcher(&http.Client{Timeout: wc.PageTimeout}, wc.UserAgent)
	default:
		fetcher = web.NewRodFetcher(wc.BrowserBin)
	}

	return web.NewResearcher(searcher, fetcher,
		web.WithLogger(logger),
		web.WithMetrics(m),
		web.WithOptions(web.Options{
			MaxPages:        wc.MaxPages,
			PageTimeout:     wc.PageTimeout,
			MaxContentChars: wc.MaxContentChars,
		}))
}

func envOrEmpty(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
