// Package rewrite turns ambiguous user messages into focused search queries.
// Every stage falls back to a safe default instead of failing.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/llm"
	"github.com/hyperjump/groundchat/internal/metrics"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/prompt"
	"github.com/hyperjump/groundchat/internal/web"
	"github.com/hyperjump/groundchat/pkg/utils"
)

const (
	defaultMinLength    = 10
	defaultHistoryTurns = 3
	queryTemperature    = 0.3
	queryMaxTokens      = 100
)

// Plan is the outcome of the rewrite flow for one message.
type Plan struct {
	Query     string
	Intent    models.IntentAnalysis
	Freshness web.Freshness
	// Rewritten reports whether the ambiguity heuristic fired.
	Rewritten bool
}

// Rewriter runs intent analysis and query rewriting against a completion provider.
type Rewriter struct {
	provider     llm.Provider
	model        string
	intent       *prompt.Template
	rewrite      *prompt.Template
	condense     *prompt.Template
	minLength    int
	historyTurns int
	now          func() time.Time
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rewriter) { r.logger = l }
}

// WithMetrics counts fallbacks per stage.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rewriter) { r.metrics = m }
}

// WithMinLength sets the rune length under which a message counts as ambiguous.
func WithMinLength(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// WithHistoryTurns sets how many recent turns are sent along with the message.
func WithHistoryTurns(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.historyTurns = n
		}
	}
}

// WithClock overrides the date source used in prompts.
func WithClock(now func() time.Time) Option {
	return func(r *Rewriter) { r.now = now }
}

// NewRewriter compiles the intent, rewrite and condense prompts of p.
func NewRewriter(provider llm.Provider, model string, p config.PromptConfig, opts ...Option) (*Rewriter, error) {
	r := &Rewriter{
		provider:     provider,
		model:        model,
		minLength:    defaultMinLength,
		historyTurns: defaultHistoryTurns,
		now:          time.Now,
	}
	var err error
	if r.intent, err = prompt.Parse("intent", p.Intent); err != nil {
		return nil, err
	}
	if r.rewrite, err = prompt.Parse("rewrite", p.Rewrite); err != nil {
		return nil, err
	}
	if r.condense, err = prompt.Parse("condense", p.Condense); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r, nil
}

// NeedsRewrite reports whether msg is short or lacks a question mark.
func (r *Rewriter) NeedsRewrite(msg string) bool {
	if utf8.RuneCountInString(msg) < r.minLength {
		return true
	}
	return !strings.ContainsAny(msg, "?？")
}

// Freshness maps the time frame of a question to a search restriction.
func Freshness(intent models.IntentAnalysis) web.Freshness {
	if intent.TimeContext.Kind == models.TimeSpecificYear {
		return web.FreshnessNone
	}
	return web.FreshnessDay
}

// Plan runs the whole flow. When msg is not ambiguous the query is msg itself.
func (r *Rewriter) Plan(ctx context.Context, msg string, history []models.Turn) Plan {
	if !r.NeedsRewrite(msg) {
		intent := models.DefaultIntentAnalysis()
		return Plan{Query: msg, Intent: intent, Freshness: Freshness(intent)}
	}
	intent := r.Analyze(ctx, msg, history)
	return Plan{
		Query:     r.Rewrite(ctx, msg, intent, history),
		Intent:    intent,
		Freshness: Freshness(intent),
		Rewritten: true,
	}
}

// Analyze asks the model for a structured reading of msg. Any failure yields
// models.DefaultIntentAnalysis.
func (r *Rewriter) Analyze(ctx context.Context, msg string, history []models.Turn) models.IntentAnalysis {
	system, err := r.intent.Render(prompt.Data{Today: r.today()})
	if err != nil {
		return r.intentFallback(err)
	}
	reply, err := r.provider.Complete(ctx, models.CompletionRequest{
		Model:    r.model,
		Messages: r.messages(system, history, msg),
		JSON:     true,
	})
	if err != nil {
		return r.intentFallback(err)
	}
	intent, err := DecodeIntent(reply)
	if err != nil {
		return r.intentFallback(err)
	}
	return intent
}

// Rewrite asks the model for a compact search query. Any failure or an empty
// reply yields msg unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, msg string, intent models.IntentAnalysis, history []models.Turn) string {
	encoded, _ := json.Marshal(intent)
	system, err := r.rewrite.Render(prompt.Data{Today: r.today(), Intent: string(encoded)})
	if err != nil {
		return r.queryFallback("rewrite", msg, err)
	}
	return r.query(ctx, "rewrite", system, msg, history)
}

// Condense rewrites msg into a document search query without intent analysis.
// It is used by the document strategy; failures yield msg unchanged.
func (r *Rewriter) Condense(ctx context.Context, msg string) string {
	system, err := r.condense.Render(prompt.Data{})
	if err != nil {
		return r.queryFallback("condense", msg, err)
	}
	return r.query(ctx, "condense", system, msg, nil)
}

func (r *Rewriter) query(ctx context.Context, stage, system, msg string, history []models.Turn) string {
	reply, err := r.provider.Complete(ctx, models.CompletionRequest{
		Model:       r.model,
		Messages:    r.messages(system, history, msg),
		Temperature: queryTemperature,
		MaxTokens:   queryMaxTokens,
	})
	if err != nil {
		return r.queryFallback(stage, msg, err)
	}
	q := strings.Trim(strings.TrimSpace(reply), "\"'`「」")
	q = strings.TrimSpace(q)
	if q == "" {
		return r.queryFallback(stage, msg, fmt.Errorf("empty reply"))
	}
	return q
}

func (r *Rewriter) messages(system string, history []models.Turn, msg string) []models.Message {
	if len(history) > r.historyTurns {
		history = history[len(history)-r.historyTurns:]
	}
	out := make([]models.Message, 0, len(history)+2)
	out = append(out, models.Message{Role: models.RoleSystem, Content: system})
	for _, t := range history {
		out = append(out, models.Message{Role: t.Role, Content: t.Content})
	}
	return append(out, models.Message{Role: models.RoleUser, Content: msg})
}

func (r *Rewriter) intentFallback(err error) models.IntentAnalysis {
	r.logger.Warn("intent analysis failed, using default", zap.Error(err))
	r.metrics.RewriteFellBack("intent")
	return models.DefaultIntentAnalysis()
}

func (r *Rewriter) queryFallback(stage, msg string, err error) string {
	r.logger.Warn("query rewrite failed, using message", zap.String("stage", stage), zap.Error(err))
	r.metrics.RewriteFellBack(stage)
	return msg
}

func (r *Rewriter) today() string {
	return r.now().Format("2006-01-02")
}
