package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/pkg/utils"
)

// OpenAIProvider talks to OpenAI or Azure OpenAI through go-openai.
type OpenAIProvider struct {
	client          *openai.Client
	logger          *zap.Logger
	completeTimeout time.Duration
}

// Option configures an OpenAIProvider.
type Option func(*OpenAIProvider)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(p *OpenAIProvider) {
		p.logger = l
	}
}

// WithCompleteTimeout bounds each non-streaming completion. Streams are bounded
// only by the caller's context.
func WithCompleteTimeout(d time.Duration) Option {
	return func(p *OpenAIProvider) {
		p.completeTimeout = d
	}
}

// NewClient builds a go-openai client from cfg. The API key is read from the
// environment variable named by cfg.APIKeyEnv.
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	var cc openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires llm.base_url")
		}
		cc = openai.DefaultAzureConfig(apiKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			cc.APIVersion = cfg.APIVersion
		}
	case "openai", "":
		cc = openai.DefaultConfig(apiKey)
		if cfg.BaseURL != "" {
			cc.BaseURL = cfg.BaseURL
		}
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
	cc.HTTPClient = newHTTPClient(cfg.Timeout)
	return openai.NewClientWithConfig(cc), nil
}

// newHTTPClient bounds the wait for response headers only. A client-wide timeout
// would also cut long streamed bodies; callers bound whole requests with ctx.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if headerTimeout > 0 {
		transport.ResponseHeaderTimeout = headerTimeout
	}
	return &http.Client{Transport: transport}
}

// NewOpenAIProvider wraps an existing go-openai client.
func NewOpenAIProvider(client *openai.Client, opts ...Option) *OpenAIProvider {
	p := &OpenAIProvider{client: client}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

// Complete runs a non-streaming completion and returns the first choice's content.
func (p *OpenAIProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if p.completeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.completeTimeout)
		defer cancel()
	}
	resp, err := p.client.CreateChatCompletion(ctx, toChatRequest(req))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion.
func (p *OpenAIProvider) Stream(ctx context.Context, req models.CompletionRequest) (Stream, error) {
	r := toChatRequest(req)
	r.Stream = true
	s, err := p.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, classify(err)
	}
	p.logger.Debug("completion stream opened", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))
	return &openAIStream{stream: s}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next non-empty delta. Chunks without content are skipped.
func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

func toChatRequest(req models.CompletionRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	r := openai.ChatCompletionRequest{
		Model:           req.Model,
		Messages:        msgs,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		PresencePenalty: req.PresencePenalty,
	}
	if req.JSON {
		r.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return r
}

// classify attaches the upstream HTTP status to go-openai errors. io.EOF and
// context errors pass through unchanged.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
