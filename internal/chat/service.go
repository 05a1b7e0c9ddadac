package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/assemble"
	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/history"
	"github.com/hyperjump/groundchat/internal/llm"
	"github.com/hyperjump/groundchat/internal/metrics"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/prompt"
	"github.com/hyperjump/groundchat/internal/retrieval"
	"github.com/hyperjump/groundchat/internal/rewrite"
	"github.com/hyperjump/groundchat/internal/web"
	"github.com/hyperjump/groundchat/pkg/utils"
)

// ScopeAll disables the domain constraint of the document strategies.
const ScopeAll = "all"

// Planner rewrites ambiguous messages into search queries.
type Planner interface {
	NeedsRewrite(msg string) bool
	Plan(ctx context.Context, msg string, history []models.Turn) rewrite.Plan
	Condense(ctx context.Context, msg string) string
}

// Researcher gathers web pages for a query.
type Researcher interface {
	Research(ctx context.Context, query string, freshness web.Freshness) ([]models.WebPage, error)
}

// Deps are the collaborators of a Service. Retriever and Researcher may be nil,
// in which case the strategies that need them answer ungrounded.
type Deps struct {
	Provider   llm.Provider
	History    *history.Manager
	Retriever  retrieval.Client
	Researcher Researcher
	Planner    Planner
}

// Reply describes a handled request.
type Reply struct {
	ThreadID string
	Strategy Strategy
	Grounded bool
	Result   *Result
}

// Service answers chat requests.
type Service struct {
	cfg      *config.Config
	deps     Deps
	prompts  map[Strategy]*prompt.Set
	streamer *Streamer
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records request outcomes and fallbacks.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService compiles the prompt templates of cfg and wires deps. cfg must have
// defaults applied.
func NewService(cfg *config.Config, deps Deps, opts ...ServiceOption) (*Service, error) {
	if deps.Provider == nil || deps.History == nil {
		return nil, fmt.Errorf("chat service requires a provider and a history manager")
	}
	s := &Service{cfg: cfg, deps: deps, prompts: make(map[Strategy]*prompt.Set)}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)

	sets := map[Strategy]config.PromptSet{
		Plain:          cfg.Prompts.Plain,
		StoreFiltered:  cfg.Prompts.Data,
		DocumentScoped: cfg.Prompts.Doc,
		DomainFAQ:      cfg.Prompts.GPTs,
		WebAugmented:   cfg.Prompts.Web,
	}
	for st, ps := range sets {
		compiled, err := prompt.CompileSet(st.String(), ps)
		if err != nil {
			return nil, err
		}
		s.prompts[st] = compiled
	}
	s.streamer = NewStreamer(deps.Provider, deps.History, s.logger, s.metrics)
	return s, nil
}

// Handle answers req, streaming deltas to sink. A request without a thread id
// starts a new thread; the id is returned in the reply.
func (s *Service) Handle(ctx context.Context, req *models.ChatRequest, sink Sink) (*Reply, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Status: http.StatusBadRequest, Message: err.Error()}
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	start := time.Now()
	strategy := Route(req.Mode)
	sc := s.strategyConfig(strategy)
	key := req.Key()
	logger := s.logger.With(
		zap.String("thread_id", key.ThreadID),
		zap.String("strategy", strategy.String()))

	window := s.deps.History.LoadWindow(ctx, key, sc.HistoryWindow)
	grounding := s.ground(ctx, logger, strategy, sc, req, window)
	snapshot := assemble.Render(grounding)

	turn, err := s.prepare(strategy, sc, req, window, grounding, snapshot)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: "failed to build prompt", Err: err}
	}

	logger.Debug("streaming completion",
		zap.Int("history_turns", len(window)),
		zap.Int("context_items", len(grounding.Items)),
		zap.String("model", turn.Model))

	res, err := s.streamer.Run(ctx, turn, sink)
	if err != nil {
		logger.Warn("completion failed", zap.Error(err))
		s.metrics.ObserveRequest(strategy.String(), "error", time.Since(start))
		return nil, err
	}
	s.metrics.ObserveRequest(strategy.String(), string(res.Outcome), time.Since(start))

	return &Reply{ThreadID: key.ThreadID, Strategy: strategy, Grounded: grounding.Grounded(), Result: res}, nil
}

// ground gathers the strategy's context. Failures are logged and yield the sentinel.
func (s *Service) ground(ctx context.Context, logger *zap.Logger, strategy Strategy, sc config.StrategyConfig, req *models.ChatRequest, window []models.Turn) models.AssembledContext {
	switch strategy {
	case StoreFiltered:
		filter := retrieval.Filter{Owner: req.UserID, ThreadID: req.ThreadID, ContentType: sc.ContentType}
		return s.retrieve(ctx, logger, req.Message, filter, sc.TopK)
	case DocumentScoped:
		query := req.Message
		if sc.RewriteQueryOrDefault() && s.deps.Planner != nil && s.deps.Planner.NeedsRewrite(query) {
			query = s.deps.Planner.Condense(ctx, query)
		}
		filter := retrieval.Filter{ContentType: sc.ContentType, Domain: scopedDomain(req.Scope, sc.Domain)}
		return s.retrieve(ctx, logger, query, filter, sc.TopK)
	case DomainFAQ:
		domain := sc.Domain
		if req.Scope == ScopeAll {
			domain = ""
		}
		filter := retrieval.Filter{ContentType: sc.ContentType, Domain: domain}
		return s.retrieve(ctx, logger, req.Message, filter, sc.TopK)
	case WebAugmented:
		return s.research(ctx, logger, req.Message, window)
	case Plain:
		return models.NoGrounding()
	default:
		return models.NoGrounding()
	}
}

func (s *Service) retrieve(ctx context.Context, logger *zap.Logger, query string, filter retrieval.Filter, topK int) models.AssembledContext {
	if s.deps.Retriever == nil {
		return models.NoGrounding()
	}
	docs, err := s.deps.Retriever.Search(ctx, query, filter, topK)
	if err != nil {
		logger.Warn("retrieval failed, answering ungrounded", zap.Error(err))
		s.metrics.RetrievalFailed("vector")
		return models.NoGrounding()
	}
	return assemble.FromDocuments(docs, s.cfg.Context.DocumentBudget)
}

func (s *Service) research(ctx context.Context, logger *zap.Logger, msg string, window []models.Turn) models.AssembledContext {
	if s.deps.Researcher == nil {
		return models.NoGrounding()
	}
	plan := rewrite.Plan{Query: msg, Intent: models.DefaultIntentAnalysis(), Freshness: rewrite.Freshness(models.DefaultIntentAnalysis())}
	if s.deps.Planner != nil {
		plan = s.deps.Planner.Plan(ctx, msg, lastTurns(window, s.cfg.Rewrite.HistoryTurns))
	}
	logger.Debug("web research",
		zap.String("query", plan.Query),
		zap.Bool("rewritten", plan.Rewritten),
		zap.String("freshness", string(plan.Freshness)))

	pages, err := s.deps.Researcher.Research(ctx, plan.Query, plan.Freshness)
	if err != nil {
		logger.Warn("web search failed, answering ungrounded", zap.Error(err))
		s.metrics.RetrievalFailed("web")
		return models.NoGrounding()
	}
	return assemble.FromWebPages(pages, s.cfg.Context.WebBudget)
}

func (s *Service) prepare(strategy Strategy, sc config.StrategyConfig, req *models.ChatRequest, window []models.Turn, grounding models.AssembledContext, snapshot string) (Turn, error) {
	set, ok := s.prompts[strategy]
	if !ok {
		set = s.prompts[Plain]
	}
	systemTmpl, userTmpl := set.Pick(grounding.Grounded())
	data := prompt.Data{
		AssistantName: s.cfg.Prompts.AssistantName,
		Question:      req.Message,
		Context:       snapshot,
		History:       transcript(window),
	}
	system, err := systemTmpl.Render(data)
	if err != nil {
		return Turn{}, err
	}
	user, err := userTmpl.Render(data)
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{
		Key:             req.Key(),
		Model:           s.cfg.LLM.ModelFor(req.ModelTier),
		Question:        req.Message,
		System:          system,
		User:            user,
		History:         window,
		Snapshot:        snapshot,
		Temperature:     sc.TemperatureOrZero(),
		MaxTokens:       sc.MaxTokens,
		PresencePenalty: sc.PresencePenaltyOrZero(),
	}
	if strategy == DocumentScoped {
		turn.Format = HTMLLinksToMarkdown
	}
	return turn, nil
}

func (s *Service) strategyConfig(st Strategy) config.StrategyConfig {
	switch st {
	case StoreFiltered:
		return s.cfg.Strategies.Data
	case DocumentScoped:
		return s.cfg.Strategies.Doc
	case DomainFAQ:
		return s.cfg.Strategies.GPTs
	case WebAugmented:
		return s.cfg.Strategies.Web
	default:
		return s.cfg.Strategies.Plain
	}
}

// scopedDomain resolves the domain of a document request: "all" drops the
// constraint, an explicit scope wins over the configured default.
func scopedDomain(scope, def string) string {
	switch scope {
	case ScopeAll:
		return ""
	case "":
		return def
	default:
		return scope
	}
}

func lastTurns(turns []models.Turn, n int) []models.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func transcript(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
