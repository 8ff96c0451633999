package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func TestClient_Complete(t *testing.T) {
	t.Run("returns the message content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)

			w.Write([]byte(chatReply("hello there")))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
		out, err := c.Complete(context.Background(), "hi", false)
		require.NoError(t, err)
		assert.Equal(t, "hello there", out)
	})

	t.Run("retries on 429 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(chatReply("ok")))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL, MaxAttempts: 3, Timeout: 5 * time.Second})
		out, err := c.Complete(context.Background(), "hi", false)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL, MaxAttempts: 3})
		_, err := c.Complete(context.Background(), "hi", false)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL, MaxAttempts: 2})
		_, err := c.Complete(context.Background(), "hi", false)
		require.Error(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClient_ExtractCandidates(t *testing.T) {
	t.Run("parses moments array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chatReply(`{"moments":[{"quote":"never","speaker":"A","topic":"t","score":8}]}`)))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL})
		moments, err := c.ExtractCandidates(context.Background(), Request{ChunkText: "text", PerChunkCap: 5})
		require.NoError(t, err)
		require.Len(t, moments, 1)
		assert.Equal(t, "never", moments[0].Quote)
		assert.Equal(t, 8.0, moments[0].Score)
	})

	t.Run("salvages JSON wrapped in prose", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chatReply("Here you go:\n```json\n{\"moments\":[]}\n```")))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL})
		moments, err := c.ExtractCandidates(context.Background(), Request{ChunkText: "text"})
		require.NoError(t, err)
		assert.Empty(t, moments)
	})

	t.Run("fails when no JSON object present", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chatReply("nothing useful")))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.ExtractCandidates(context.Background(), Request{ChunkText: "text"})
		assert.Error(t, err)
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, true},
		{"braces inside strings", `{"a":"}{"}`, `{"a":"}{"}`, true},
		{"escaped quote in string", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`, true},
		{"no object", "plain text", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
