package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicReplier(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var reqBody map[string]any
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		gotModel, _ = reqBody["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       reqBody["model"],
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": " Hello from the model "},
			},
			"usage": map[string]any{"input_tokens": 3, "output_tokens": 4},
		})
	}))
	defer server.Close()

	r, err := NewAnthropicReplier(AnthropicOptions{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-sonnet-4-5",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	text, err := r.Reply(context.Background(), domain.RoomMessage{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello from the model", text)
	assert.Equal(t, "claude-sonnet-4-5", gotModel)
	assert.Equal(t, "anthropic", r.Kind())
}

func TestAnthropicReplierRequiresKey(t *testing.T) {
	_, err := NewAnthropicReplier(AnthropicOptions{})
	assert.Error(t, err)
}
