// =============================================================================
// Lookahead OpenAI-Compatible Generator
// =============================================================================
// Turns (action, input, context) into a chat completion against any
// OpenAI-compatible endpoint and maps the reply to a precache.Outcome.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/internal/tlsutil"
	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/types"
)

// Config holds the configuration for an OpenAI-compatible generator.
type Config struct {
	// Name identifies the backend in logs and errors (e.g., "ollama").
	Name string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// BaseURL is the API root (e.g., "http://localhost:11434").
	BaseURL string

	// Model is the model name sent with every request.
	Model string

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint defaults to "/v1/models".
	ModelsEndpoint string

	// SystemPrompt overrides the default narrator prompt.
	SystemPrompt string

	// Temperature and MaxTokens are passed through when non-zero.
	Temperature float32
	MaxTokens   int
}

// Generator is a precache.Generator backed by a chat completion API.
type Generator struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible generator with the given config.
func New(cfg Config, logger *zap.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(timeout),
		Logger: logger.With(zap.String("component", "openaicompat"), zap.String("generator", cfg.Name)),
	}
}

// Name returns the generator name.
func (g *Generator) Name() string { return g.Cfg.Name }

// buildHeaders applies headers to the HTTP request.
func (g *Generator) buildHeaders(req *http.Request) {
	if g.Cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.Cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

// endpoint builds the full URL for a given path.
func (g *Generator) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(g.Cfg.BaseURL, "/"), path)
}

// HealthCheck verifies the backend is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(g.Cfg.ModelsEndpoint), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	g.buildHeaders(httpReq)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return g.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), g.Name())
	}
	return nil
}

// Generate performs a non-streaming chat completion for one action.
func (g *Generator) Generate(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error) {
	body := chatRequest{
		Model: g.Cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: g.Cfg.SystemPrompt},
			{Role: "user", Content: buildPrompt(actionID, inputText, genContext)},
		},
		Temperature: g.Cfg.Temperature,
		MaxTokens:   g.Cfg.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(g.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.buildHeaders(httpReq)

	start := time.Now()
	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, g.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, msg, g.Name())
	}

	var oaResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode completion").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithGenerator(g.Name())
	}
	if len(oaResp.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "completion returned no choices").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithGenerator(g.Name())
	}

	out := parseOutcome(oaResp.Choices[0].Message.Content)
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.Metadata["generator"] = g.Name()
	if oaResp.Model != "" {
		out.Metadata["model"] = oaResp.Model
	}

	g.Logger.Debug("completion finished",
		zap.String("action", actionID),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", oaResp.Usage.TotalTokens))
	return out, nil
}

func (g *Generator) transportError(err error) error {
	code := types.ErrUpstreamError
	if errors.Is(err, context.DeadlineExceeded) {
		code = types.ErrUpstreamTimeout
	}
	return types.NewError(code, "request to generator backend failed").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithGenerator(g.Name())
}

var _ precache.Generator = (*Generator)(nil)
