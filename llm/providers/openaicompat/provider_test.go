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

	"github.com/BaSui01/stemchat/llm"
	"github.com/BaSui01/stemchat/llm/providers"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, nil)
	require.NotNil(t, p)
	assert.Equal(t, "openai-compat", p.Name())
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, 60*time.Second, p.Client.Timeout)
	assert.NotNil(t, p.Logger)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestCompletion_Success(t *testing.T) {
	var got providers.OpenAICompatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			ID:    "cmpl-1",
			Model: got.Model,
			Choices: []providers.OpenAICompatChoice{{
				FinishReason: "stop",
				Message:      providers.OpenAICompatMessage{Role: "assistant", Content: "Hello teacher"},
			}},
			Usage:   &providers.OpenAICompatUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
			Created: 1700000000,
		})
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL + "/", APIKey: "sk-test", DefaultModel: "tinyllama"}, nil)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "hi"}},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "tinyllama", got.Model)
	assert.Equal(t, 512, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	assert.Equal(t, "Hello teacher", resp.FirstContent())
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, "openai-compat", resp.Provider)
	assert.Equal(t, int64(1700000000), resp.CreatedAt.Unix())
}

func TestCompletion_HTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, llm.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, true},
		{"quota", http.StatusBadRequest, `{"error":{"message":"quota exhausted"}}`, llm.ErrQuotaExceeded, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, llm.ErrInvalidRequest, false},
		{"server error", http.StatusInternalServerError, `oops`, llm.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New(Config{BaseURL: srv.URL}, nil)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.HTTPStatus)
		})
	}
}

func TestCompletion_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}, nil).Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrEmptyResponse, llmErr.Code)
}

func TestCompletion_NoMessages(t *testing.T) {
	_, err := New(Config{BaseURL: "http://127.0.0.1:1"}, nil).Completion(context.Background(), &llm.ChatRequest{})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestCompletion_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{BaseURL: srv.URL}, nil).Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Timeout:  50 * time.Millisecond,
	})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.True(t, llmErr.Retryable)
}

// ---------------------------------------------------------------------------
// HealthCheck
// ---------------------------------------------------------------------------

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	status, err := New(Config{BaseURL: srv.URL}, nil).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	status, err = New(Config{BaseURL: srv.URL, ModelsEndpoint: "/missing"}, nil).HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
