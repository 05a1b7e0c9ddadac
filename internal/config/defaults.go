package config

import "time"

// Default per-strategy history windows. Document and web strategies carry more context.
const (
	DefaultPlainWindow = 30
	DefaultDataWindow  = 30
	DefaultGPTsWindow  = 30
	DefaultDocWindow   = 50
	DefaultWebWindow   = 50
)

// MaxWebPages caps the pages fetched (and fetched concurrently) per web search.
const MaxWebPages = 5

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	// WriteTimeout stays 0 (unbounded) unless set: answers are streamed.

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/groundchat/data/db/history.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/groundchat/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/groundchat/data/indices/vectors"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.APIVersion == "" && cfg.LLM.Provider == "azure" {
		cfg.LLM.APIVersion = "2024-06-01"
	}
	if cfg.LLM.DefaultModel == "" {
		cfg.LLM.DefaultModel = "gpt-4o-mini"
	}
	if cfg.LLM.FastModel == "" {
		cfg.LLM.FastModel = "gpt-35-turbo-16k"
	}
	if cfg.LLM.FastTiers == nil {
		cfg.LLM.FastTiers = []string{"GPT-3"}
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 2 * time.Minute
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = "local"
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Retrieval.Weaviate.Scheme == "" {
		cfg.Retrieval.Weaviate.Scheme = "http"
	}
	if cfg.Retrieval.Weaviate.Host == "" {
		cfg.Retrieval.Weaviate.Host = "localhost:8081"
	}
	if cfg.Retrieval.Weaviate.ClassName == "" {
		cfg.Retrieval.Weaviate.ClassName = "Document"
	}

	if cfg.Web.Searcher == "" {
		cfg.Web.Searcher = "bing"
	}
	if cfg.Web.Fetcher == "" {
		cfg.Web.Fetcher = "rod"
	}
	if cfg.Web.BingEndpoint == "" {
		cfg.Web.BingEndpoint = "https://api.bing.microsoft.com/v7.0/search"
	}
	if cfg.Web.BingAPIKeyEnv == "" {
		cfg.Web.BingAPIKeyEnv = "BING_SEARCH_KEY"
	}
	if cfg.Web.Market == "" {
		cfg.Web.Market = "ja-JP"
	}
	if cfg.Web.DuckDuckGoURL == "" {
		cfg.Web.DuckDuckGoURL = "https://html.duckduckgo.com/html/"
	}
	if cfg.Web.MaxPages <= 0 || cfg.Web.MaxPages > MaxWebPages {
		cfg.Web.MaxPages = MaxWebPages
	}
	if cfg.Web.PageTimeout == 0 {
		cfg.Web.PageTimeout = 30 * time.Second
	}
	if cfg.Web.SearchTimeout == 0 {
		cfg.Web.SearchTimeout = 10 * time.Second
	}
	if cfg.Web.MaxContentChars == 0 {
		cfg.Web.MaxContentChars = 2000
	}
	if cfg.Web.RequestsPerSecond == 0 {
		cfg.Web.RequestsPerSecond = 3
	}
	if cfg.Web.UserAgent == "" {
		cfg.Web.UserAgent = "Mozilla/5.0 (compatible; groundchat/1.0)"
	}

	if cfg.Context.DocumentBudget == 0 {
		cfg.Context.DocumentBudget = 1500
	}
	if cfg.Context.WebBudget == 0 {
		cfg.Context.WebBudget = 500
	}

	if cfg.Rewrite.MinLength == 0 {
		cfg.Rewrite.MinLength = 10
	}
	if cfg.Rewrite.HistoryTurns == 0 {
		cfg.Rewrite.HistoryTurns = 3
	}

	applyStrategyDefaults(&cfg.Strategies.Plain, DefaultPlainWindow, 0, nil, 0, nil, false)
	applyStrategyDefaults(&cfg.Strategies.Data, DefaultDataWindow, 10, f32(0.7), 0, f32(-0.5), false)
	applyStrategyDefaults(&cfg.Strategies.Doc, DefaultDocWindow, 10, nil, 4000, nil, true)
	applyStrategyDefaults(&cfg.Strategies.GPTs, DefaultGPTsWindow, 10, nil, 0, nil, false)
	applyStrategyDefaults(&cfg.Strategies.Web, DefaultWebWindow, 0, f32(0.7), 2000, nil, false)
	if cfg.Strategies.Data.ContentType == "" {
		cfg.Strategies.Data.ContentType = "data"
	}
	if cfg.Strategies.Doc.ContentType == "" {
		cfg.Strategies.Doc.ContentType = "doc"
	}
	if cfg.Strategies.GPTs.ContentType == "" {
		cfg.Strategies.GPTs.ContentType = "doc"
	}
	if cfg.Strategies.GPTs.Domain == "" {
		cfg.Strategies.GPTs.Domain = "sales"
	}

	applyPromptDefaults(&cfg.Prompts)
}

func applyStrategyDefaults(s *StrategyConfig, window, topK int, temp *float32, maxTokens int, presence *float32, rewrite bool) {
	if s.HistoryWindow == 0 {
		s.HistoryWindow = window
	}
	if s.TopK == 0 {
		s.TopK = topK
	}
	if s.Temperature == nil {
		s.Temperature = temp
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = maxTokens
	}
	if s.PresencePenalty == nil {
		s.PresencePenalty = presence
	}
	if s.RewriteQuery == nil {
		s.RewriteQuery = &rewrite
	}
}

func f32(v float32) *float32 { return &v }
