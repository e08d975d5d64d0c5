package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/types"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	g := New(Config{}, nil)
	assert.Equal(t, "openai", g.Name())
	assert.Equal(t, "/v1/chat/completions", g.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", g.Cfg.ModelsEndpoint)
	assert.Equal(t, defaultSystemPrompt, g.Cfg.SystemPrompt)
	assert.Equal(t, 30*time.Second, g.Client.Timeout)
	assert.NotNil(t, g.Logger)

	custom := New(Config{Name: "ollama", EndpointPath: "/api/chat", Timeout: time.Second}, zap.NewNop())
	assert.Equal(t, "ollama", custom.Name())
	assert.Equal(t, "/api/chat", custom.Cfg.EndpointPath)
	assert.Equal(t, time.Second, custom.Client.Timeout)
}

// ---------------------------------------------------------------------------
// Generate()
// ---------------------------------------------------------------------------

func completionServer(t *testing.T, content string, check func(*chatRequest, *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(&req, r)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			ID:    "resp-1",
			Model: "narrator-1",
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
			Usage: chatUsage{TotalTokens: 42},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_JSONReply(t *testing.T) {
	srv := completionServer(t,
		`{"text": "The guard lets you pass.", "success": true, "gold_delta": -5}`,
		func(req *chatRequest, r *http.Request) {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "narrator", req.Model)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Contains(t, req.Messages[1].Content, "Context: Agent is near guard (distance: 2.0)")
			assert.Contains(t, req.Messages[1].Content, "Action: trade")
			assert.Contains(t, req.Messages[1].Content, "Player: I bribe the guard")
		})

	g := New(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "narrator"}, zap.NewNop())
	out, err := g.Generate(context.Background(), "trade", "I bribe the guard", "Agent is near guard (distance: 2.0)")
	require.NoError(t, err)

	assert.Equal(t, "The guard lets you pass.", out.Text)
	assert.True(t, out.Success)
	assert.Equal(t, -5, out.GoldDelta)
	assert.Equal(t, "openai", out.Metadata["generator"])
	assert.Equal(t, "narrator-1", out.Metadata["model"])
}

func TestGenerate_PlainReply(t *testing.T) {
	srv := completionServer(t, "  The merchant shrugs.  ", func(_ *chatRequest, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
	})

	g := New(Config{BaseURL: srv.URL + "/"}, nil)
	out, err := g.Generate(context.Background(), "talk", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "The merchant shrugs.", out.Text)
	assert.True(t, out.Success)
}

func TestGenerate_HTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		code      types.ErrorCode
		retryable bool
		message   string
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`, types.ErrUnauthorized, false, "bad key (type: auth)"},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.ErrRateLimited, true, "slow down"},
		{http.StatusGatewayTimeout, `timeout`, types.ErrUpstreamTimeout, true, "timeout"},
		{http.StatusInternalServerError, `oops`, types.ErrUpstreamError, true, "oops"},
		{http.StatusBadRequest, `bad`, types.ErrInvalidRequest, false, "bad"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := New(Config{Name: "test", BaseURL: srv.URL}, nil)
			_, err := g.Generate(context.Background(), "talk", "hi", "")
			require.Error(t, err)

			var te *types.Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, tt.retryable, te.Retryable)
			assert.Equal(t, tt.status, te.HTTPStatus)
			assert.Equal(t, tt.message, te.Message)
			assert.Equal(t, "test", te.Generator)
		})
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), "talk", "hi", "")
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestGenerate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: url}, nil).Generate(context.Background(), "talk", "hi", "")
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, New(Config{BaseURL: srv.URL}, nil).HealthCheck(context.Background()))
	err := New(Config{BaseURL: srv.URL, ModelsEndpoint: "/missing"}, nil).HealthCheck(context.Background())
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestParseOutcome(t *testing.T) {
	out := parseOutcome("```json\n{\"text\":\"Ouch\",\"success\":false,\"hp_delta\":-3}\n```")
	assert.Equal(t, "Ouch", out.Text)
	assert.False(t, out.Success)
	assert.Equal(t, -3, out.HPDelta)

	out = parseOutcome(`{"unexpected": 1}`)
	assert.Equal(t, `{"unexpected": 1}`, out.Text)
}
