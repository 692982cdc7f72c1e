package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	aerrors "github.com/tasklyhq/assistant/internal/errors"
	"github.com/tasklyhq/assistant/internal/retry"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 2048
	defaultModel        = "claude-sonnet-4-5"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    HTTPClient
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

func WithMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.maxTokens = n }
}

func WithHTTPClient(c HTTPClient) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = c }
}

func WithBaseURL(u string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = u }
}

func WithRetryConfig(cfg retry.Config) AnthropicOption {
	return func(p *AnthropicProvider) { p.retryCfg = cfg }
}

// NewAnthropicProvider constructs a new Anthropic provider.
func NewAnthropicProvider(apiKey string, logger zerolog.Logger, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    apiKey,
		baseURL:   anthropicAPIBase,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.With().Str("component", "llm").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *AnthropicProvider) ModelID() string { return p.model }
func (p *AnthropicProvider) MaxTokens() int  { return p.maxTokens }

// ---- Anthropic wire types ----

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) buildRequest(req CompletionRequest) anthropicRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTok := p.maxTokens
	if req.MaxTokens > 0 {
		maxTok = req.MaxTokens
	}

	ar := anthropicRequest{
		Model:     model,
		MaxTokens: maxTok,
		System:    req.SystemPrompt,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		ar.Temperature = &temp
	}
	for _, m := range req.Messages {
		ar.Messages = append(ar.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return ar
}

func (p *AnthropicProvider) doRequest(ctx context.Context, ar anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(ar)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, aerrors.NewAPIError("anthropic", resp.StatusCode, string(raw))
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("anthropic api error %s: %s", out.Error.Type, out.Error.Message)
	}
	return &out, nil
}

// Complete sends a blocking completion request. Transient failures (429, 5xx)
// are retried with backoff; everything else returns immediately.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.apiKey == "" {
		return nil, aerrors.ErrMissingCredentials
	}

	ar := p.buildRequest(req)

	var wire *anthropicResponse
	err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		var callErr error
		wire, callErr = p.doRequest(ctx, ar)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	out := &CompletionResponse{
		StopReason:   wire.StopReason,
		InputTokens:  wire.Usage.InputTokens,
		OutputTokens: wire.Usage.OutputTokens,
	}
	for _, block := range wire.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}

	p.logger.Debug().
		Str("model", ar.Model).
		Str("stop_reason", out.StopReason).
		Int("in_tokens", out.InputTokens).
		Int("out_tokens", out.OutputTokens).
		Msg("anthropic complete")
	return out, nil
}
