package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minddock/internal/config"
)

func TestNewRequiresCredential(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrNoCredential)

	cfg.Assistant.Provider = "anthropic"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrNoCredential)

	cfg.Assistant.AnthropicAPIKey = "sk-ant"
	m, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic::claude-3-5-haiku-latest", m.Name())

	cfg.Assistant.Provider = "openai"
	cfg.Embedder.OpenAI.APIKey = "sk-test"
	m, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai::gpt-4o-mini", m.Name())

	cfg.Assistant.Provider = "mistral"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 3)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "be brief", body.Messages[0].Content)
		assert.Equal(t, "assistant", body.Messages[1].Role)
		assert.Equal(t, "user", body.Messages[2].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"buy milk first"}}]}`))
	}))
	defer srv.Close()

	c := newOpenAI("sk-test", srv.URL+"/v1/", "gpt-test", 0)
	reply, err := c.Chat(context.Background(), "be brief", []Message{
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "what should I buy?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "buy milk first", reply)
}

func TestClaudeChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.EqualValues(t, 256, body["max_tokens"])
		assert.NotNil(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"eggs "},{"type":"text","text":"too"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := newClaude("sk-ant", srv.URL+"/", "claude-test", 256)
	reply, err := c.Chat(context.Background(), "be brief", []Message{{Role: "user", Content: "and?"}})
	require.NoError(t, err)
	assert.Equal(t, "eggs too", reply)
}

func TestChatSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newOpenAI("sk-test", srv.URL+"/v1/", "m", 0).Chat(context.Background(), "", []Message{{Role: "user", Content: "x"}})
	assert.Error(t, err)
	_, err = newClaude("sk-ant", srv.URL+"/", "m", 0).Chat(context.Background(), "", []Message{{Role: "user", Content: "x"}})
	assert.Error(t, err)
}
