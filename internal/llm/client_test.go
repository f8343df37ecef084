package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmori/siriusd/internal/config"
)

func testConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Endpoint:     endpoint,
		Model:        "local-model",
		SystemPrompt: "あなたはシリウスくんです。",
		TimeoutMS:    5000,
	}
}

func TestReplyRoundTrip(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "今日は晴れですよ。"}}]
		}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	reply := client.Reply(context.Background(), "今日の天気は？")
	require.Equal(t, "今日は晴れですよ。", reply)

	require.Equal(t, "local-model", gotBody["model"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	require.Equal(t, "system", system["role"])
	require.Equal(t, "あなたはシリウスくんです。", system["content"])
	user := messages[1].(map[string]any)
	require.Equal(t, "user", user["role"])
	require.Equal(t, "今日の天気は？", user["content"])
}

func TestReplyBackendFailureReturnsErrorText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	require.Equal(t, ErrorReply(), client.Reply(context.Background(), "こんにちは"))
}

func TestReplyUnreachableBackend(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"), nil)
	require.Equal(t, ErrorReply(), client.Reply(context.Background(), "こんにちは"))
}

func TestReplyEmptyInput(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"), nil)
	require.Equal(t, ErrorReply(), client.Reply(context.Background(), "   "))
}

func TestReplyEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cmpl-2", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	require.Equal(t, ErrorReply(), client.Reply(context.Background(), "こんにちは"))
}
