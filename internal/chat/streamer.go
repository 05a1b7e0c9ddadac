package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/history"
	"github.com/hyperjump/groundchat/internal/llm"
	"github.com/hyperjump/groundchat/internal/metrics"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/pkg/utils"
)

const persistTimeout = 10 * time.Second

// Outcome is how a stream ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

// Sink receives deltas as they arrive. An error means the caller is gone.
type Sink interface {
	Delta(text string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string) error

func (f SinkFunc) Delta(text string) error { return f(text) }

// Turn is one prepared completion: rendered prompts plus what to persist.
type Turn struct {
	Key             models.ThreadKey
	Model           string
	Question        string
	System          string
	User            string
	History         []models.Turn
	Snapshot        string
	Temperature     float32
	MaxTokens       int
	PresencePenalty float32
	// Format rewrites the full answer before it is persisted. Optional.
	Format func(string) string
}

// Result is the terminal state of a stream. Text is set only when completed.
type Result struct {
	Outcome   Outcome
	Text      string
	Persisted bool
}

// Streamer runs a streaming completion and persists completed exchanges.
type Streamer struct {
	provider llm.Provider
	history  *history.Manager
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewStreamer creates a streamer. logger and m may be nil.
func NewStreamer(provider llm.Provider, h *history.Manager, logger *zap.Logger, m *metrics.Metrics) *Streamer {
	return &Streamer{provider: provider, history: h, logger: utils.OrNop(logger), metrics: m}
}

// Messages builds the completion messages: system prompt, history window, user prompt.
func Messages(in Turn) []models.Message {
	msgs := make([]models.Message, 0, len(in.History)+2)
	msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: in.System})
	for _, t := range in.History {
		msgs = append(msgs, models.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, models.Message{Role: models.RoleUser, Content: in.User})
}

// Run streams the completion of in to sink. A provider failure returns *Error and
// persists nothing. Cancellation of ctx or a failing sink ends the stream as
// cancelled, also without persisting. A natural end persists the exchange once.
func (s *Streamer) Run(ctx context.Context, in Turn, sink Sink) (*Result, error) {
	stream, err := s.provider.Stream(ctx, models.CompletionRequest{
		Model:           in.Model,
		Messages:        Messages(in),
		Temperature:     in.Temperature,
		MaxTokens:       in.MaxTokens,
		PresencePenalty: in.PresencePenalty,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return &Result{Outcome: OutcomeCancelled}, nil
		}
		return nil, completionError(err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		if ctx.Err() != nil {
			return &Result{Outcome: OutcomeCancelled}, nil
		}
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return &Result{Outcome: OutcomeCancelled}, nil
			}
			return nil, completionError(err)
		}
		b.WriteString(delta)
		if err := sink.Delta(delta); err != nil {
			s.logger.Info("caller went away mid-stream", zap.String("thread_id", in.Key.ThreadID), zap.Error(err))
			return &Result{Outcome: OutcomeCancelled}, nil
		}
	}
	// Buffered deltas can drain to EOF after the caller has gone.
	if ctx.Err() != nil {
		return &Result{Outcome: OutcomeCancelled}, nil
	}

	return s.finalize(ctx, in, b.String()), nil
}

// finalize applies the formatter and persists the exchange. Persistence runs
// detached from ctx: the answer was fully delivered.
func (s *Streamer) finalize(ctx context.Context, in Turn, text string) *Result {
	if in.Format != nil {
		text = in.Format(text)
	}
	res := &Result{Outcome: OutcomeCompleted, Text: text}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	user := &models.Turn{Role: models.RoleUser, Content: in.Question}
	assistant := &models.Turn{Role: models.RoleAssistant, Content: text, Snapshot: in.Snapshot}
	if err := s.history.AppendExchange(pctx, in.Key, user, assistant); err != nil {
		s.logger.Error("failed to persist exchange",
			zap.String("thread_id", in.Key.ThreadID),
			zap.String("user_id", in.Key.UserID),
			zap.Error(err))
		s.metrics.AppendFailed()
		return res
	}
	res.Persisted = true
	return res
}
