package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnthropicCaller_Complete_LiftsSystemMessageAndDefaultsMaxTokens(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"model": "claude-3-opus",
			"content": []map[string]any{
				{"type": "text", "text": "part one"},
				{"type": "text", "text": "part two"},
			},
			"usage": map[string]any{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	defer server.Close()

	caller := NewAnthropicCaller(server.URL, zap.NewNop())
	resp, err := caller.Complete(context.Background(), "sk-ant-test", "claude-3-opus", &model.ChatRequest{
		Model: "claude-3-opus",
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "be terse"},
			{Role: model.RoleSystem, Content: "dropped"},
			{Role: model.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "be terse", captured["system"])
	require.EqualValues(t, anthropicDefaultMaxTok, captured["max_tokens"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 1, "only the user message should remain; both system messages are lifted/dropped")

	require.Equal(t, "part one\npart two", resp.Choices[0].Message.Content)
	require.Equal(t, model.RoleAssistant, resp.Choices[0].Message.Role)
	require.Equal(t, "stop", *resp.Choices[0].FinishReason)
	require.Equal(t, 12, resp.Usage.InputTokens)
	require.Equal(t, 7, resp.Usage.OutputTokens)
}

func TestAnthropicCaller_Complete_RespectsExplicitMaxTokens(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_2", "model": "claude-3-opus",
			"content": []map[string]any{{"type": "text", "text": "ok"}},
			"usage":   map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer server.Close()

	maxTokens := 256
	caller := NewAnthropicCaller(server.URL, zap.NewNop())
	_, err := caller.Complete(context.Background(), "sk-ant-test", "claude-3-opus", &model.ChatRequest{
		Model:     "claude-3-opus",
		MaxTokens: &maxTokens,
		Messages:  []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 256, captured["max_tokens"])
}

func TestAnthropicCaller_Complete_NonSuccessStatusYieldsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	caller := NewAnthropicCaller(server.URL, zap.NewNop())
	_, err := caller.Complete(context.Background(), "sk-ant-test", "claude-3-opus", &model.ChatRequest{
		Model:    "claude-3-opus",
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	apiErr, ok := err.(*model.Error)
	require.True(t, ok)
	require.Equal(t, model.ErrAPIError, apiErr.Code)
}
