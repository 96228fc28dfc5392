package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

const (
	// DefaultBaseURL is DeepSeek's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "deepseek-chat"
	// DefaultTemperature is used when neither the client nor the call sets one.
	DefaultTemperature = 0.3
)

// ChatCompletionAPI is the subset of the go-openai client used here.
type ChatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// Timeout bounds each HTTP request. Zero means 120s.
	Timeout time.Duration
	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64
	// Burst is the limiter burst size (default 1).
	Burst int
}

// OpenAIClient implements Completer against any OpenAI-compatible API.
type OpenAIClient struct {
	api         ChatCompletionAPI
	model       string
	temperature float64
	limiter     *rate.Limiter
}

// NewOpenAIClient creates a client for cfg.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = baseURL
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return NewOpenAIClientWithAPI(openai.NewClientWithConfig(oc), cfg), nil
}

// NewOpenAIClientWithAPI wraps an existing API implementation.
// This is useful for testing.
func NewOpenAIClientWithAPI(api ChatCompletionAPI, cfg OpenAIConfig) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	c := &OpenAIClient{
		api:         api,
		model:       model,
		temperature: temperature,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Model returns the model requests are sent to by default.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Ask sends messages and returns the first choice.
func (c *OpenAIClient) Ask(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error) {
	o := ApplyOptions(opts)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(c.temperature),
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.Temperature != nil {
		req.Temperature = float32(*o.Temperature)
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	result := &Result{}
	if len(resp.Choices) > 0 {
		result.Text = resp.Choices[0].Message.Content
	}
	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

func toOpenAIMessages(messages []memory.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case memory.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case memory.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}
