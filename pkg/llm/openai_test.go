package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

type mockChatAPI struct {
	mu    sync.Mutex
	resp  openai.ChatCompletionResponse
	err   error
	calls []openai.ChatCompletionRequest
}

func (m *mockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.resp, m.err
}

func TestOpenAIClient_RequestMapping(t *testing.T) {
	api := &mockChatAPI{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hi there"}}},
			Usage:   openai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		},
	}
	c := NewOpenAIClientWithAPI(api, OpenAIConfig{})

	msgs := []memory.Message{
		memory.NewMessage(memory.RoleSystem, "be nice"),
		memory.NewMessage(memory.RoleUser, "hello"),
		memory.NewMessage(memory.RoleAssistant, "hey"),
	}
	res, err := c.Ask(context.Background(), msgs, WithMaxTokens(250))
	require.NoError(t, err)

	assert.Equal(t, "hi there", res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, *res.Usage)

	require.Len(t, api.calls, 1)
	req := api.calls[0]
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, 250, req.MaxTokens)
	assert.InDelta(t, DefaultTemperature, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "hello", req.Messages[1].Content)
}

func TestOpenAIClient_Overrides(t *testing.T) {
	api := &mockChatAPI{}
	c := NewOpenAIClientWithAPI(api, OpenAIConfig{Model: "gpt-4o-mini", Temperature: 0.7})
	assert.Equal(t, "gpt-4o-mini", c.Model())

	res, err := c.Ask(context.Background(), nil, WithModel("gpt-4.1"), WithTemperature(0.1))
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Nil(t, res.Usage, "zero usage means the endpoint did not report it")

	req := api.calls[0]
	assert.Equal(t, "gpt-4.1", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	assert.Zero(t, req.MaxTokens)
}

func TestOpenAIClient_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := NewOpenAIClientWithAPI(&mockChatAPI{err: boom}, OpenAIConfig{})

	_, err := c.Ask(context.Background(), []memory.Message{memory.NewMessage(memory.RoleUser, "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestOpenAIClient_RateLimitHonoursContext(t *testing.T) {
	c := NewOpenAIClientWithAPI(&mockChatAPI{}, OpenAIConfig{RequestsPerSecond: 0.001, Burst: 1})

	_, err := c.Ask(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Ask(ctx, nil)
	assert.Error(t, err)
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAIClient_HTTP(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:      "cmpl-1",
			Object:  "chat.completion",
			Model:   got.Model,
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "pong"}}},
			Usage:   openai.Usage{PromptTokens: 7, CompletionTokens: 1, TotalTokens: 8},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := c.Ask(context.Background(), []memory.Message{memory.NewMessage(memory.RoleUser, "ping")}, WithMaxTokens(512))
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 8, res.Usage.TotalTokens)
	assert.Equal(t, 512, got.MaxTokens)
	assert.Equal(t, DefaultModel, got.Model)
}

func TestOpenAIClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "nope", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), []memory.Message{memory.NewMessage(memory.RoleUser, "ping")})
	require.Error(t, err)

	var apiErr *openai.APIError
	assert.True(t, errors.As(err, &apiErr))
}
