package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xlsmart/talenthub/internal/metrics"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), false},
		{"429 status", errors.New("status code: 429: rate limit exceeded, retry later"), false},
		{"too many requests", errors.New("HTTP 429 Too Many Requests"), false},
		{"openai insufficient quota", errors.New("status code: 429: insufficient_quota"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("API returned unexpected status code: 403"), true},
		{"401 inside an id", errors.New("employee EMP-4017 not found"), false},
		{"bare number", errors.New("request 401 of 500 timed out"), false},
		{"langchaingo auth", llms.NewError(llms.ErrCodeAuthentication, "openai", "bad key"), true},
		{"langchaingo quota", llms.NewError(llms.ErrCodeQuotaExceeded, "openai", "out of credits"), true},
		{"langchaingo rate limit", llms.NewError(llms.ErrCodeRateLimit, "openai", "slow down"), false},
		{"wrapped langchaingo error", fmt.Errorf("generate: %w", llms.NewError(llms.ErrCodeAuthentication, "anthropic", "denied")), true},
		{"wrapped error", fmt.Errorf("classify: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

// fakeLLM records call options and returns a canned response.
type fakeLLM struct {
	content string
	info    map[string]any
	err     error
	opts    llms.CallOptions
	msgs    []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.opts)
	}
	f.msgs = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content, GenerationInfo: f.info}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateWithSystem(t *testing.T) {
	fake := &fakeLLM{content: "NO_MATCH", info: map[string]any{"PromptTokens": 42, "CompletionTokens": 3}}
	mc := metrics.NewCollector()
	m := NewModelWith(fake, "gpt-test", Options{Temperature: 0.1, MaxTokens: 50}, mc)

	out, err := m.GenerateWithSystem(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "NO_MATCH", out)

	assert.InDelta(t, 0.1, fake.opts.Temperature, 1e-9)
	assert.Equal(t, 50, fake.opts.MaxTokens)
	require.Len(t, fake.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.msgs[0].Role)

	snap := mc.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(42), *snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, "gpt-test", m.Model())
}

func TestGenerateWithSystemErrors(t *testing.T) {
	t.Run("fatal provider error", func(t *testing.T) {
		m := NewModelWith(&fakeLLM{err: errors.New("HTTP 401: invalid api key")}, "m", Options{}, nil)
		_, err := m.GenerateWithSystem(context.Background(), "s", "u")
		assert.ErrorIs(t, err, ErrFatalAPI)
	})

	t.Run("transient error", func(t *testing.T) {
		m := NewModelWith(&fakeLLM{err: errors.New("connection reset by peer")}, "m", Options{}, nil)
		_, err := m.GenerateWithSystem(context.Background(), "s", "u")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrFatalAPI)
	})

	t.Run("limiter honours cancelled context", func(t *testing.T) {
		m := NewModelWith(&fakeLLM{content: "x"}, "m", Options{RateLimit: 0.001}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		_, err := m.GenerateWithSystem(ctx, "s", "u") // consumes the single burst token
		require.NoError(t, err)
		cancel()
		_, err = m.GenerateWithSystem(ctx, "s", "u")
		assert.Error(t, err)
	})
}

func TestTokenUsage(t *testing.T) {
	in, out := tokenUsage(map[string]any{"InputTokens": 10, "OutputTokens": int64(2)})
	assert.Equal(t, int64(10), in)
	assert.Equal(t, int64(2), out)

	in, out = tokenUsage(nil)
	assert.Zero(t, in)
	assert.Zero(t, out)
}
