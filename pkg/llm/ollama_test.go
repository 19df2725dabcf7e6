package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestOllamaStreamDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "test-model", req.Model)

		frames := []string{
			`{"message":{"role":"assistant","thinking":"hmm"},"done":false}`,
			`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"message":{"role":"assistant","content":" world"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":10,"eval_count":4}`,
		}
		for _, f := range frames {
			fmt.Fprintln(w, f)
		}
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	ch, err := client.Stream(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 5)
	assert.Equal(t, &DeltaThinkingEvent{Text: "hmm"}, events[0])
	assert.Equal(t, &DeltaTextEvent{Text: "Hello"}, events[1])
	assert.Equal(t, &DeltaTextEvent{Text: " world"}, events[2])
	assert.Equal(t, &UsageEvent{PromptTokens: 10, CompletionTokens: 4}, events[3])
	assert.IsType(t, &DoneEvent{}, events[4])
}

func TestOllamaStreamToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","tool_calls":[{"function":{"name":"world_apply_ops","arguments":{"ops":[{"op":"set","path":"/project","value":"atlas"}]}}}]},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	ch, err := client.Stream(context.Background(), &Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "set project"}},
		Tools: []ToolDefinition{{
			Name:             "world_apply_ops",
			Description:      "apply ops",
			ParametersSchema: json.RawMessage(`{"type":"object"}`),
		}},
	})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)

	call, ok := events[0].(*ToolCallEvent)
	require.True(t, ok)
	assert.Equal(t, "world_apply_ops", call.Call.Name)
	assert.NotEmpty(t, call.Call.ID)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(call.Call.Arguments), &args))
	assert.Contains(t, args, "ops")
}

func TestOllamaStreamBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	ch, err := client.Stream(context.Background(), &Request{
		Model:    "missing",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 1)
	errEvent, ok := events[0].(*ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "model not found", errEvent.Message)
}

func TestOllamaStreamTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
		// Connection closes without a done frame.
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	ch, err := client.Stream(context.Background(), &Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, &DeltaTextEvent{Text: "partial"}, events[0])
	assert.IsType(t, &ErrorEvent{}, events[1])
}

func TestOllamaStreamRejectsJSONFormatWithTools(t *testing.T) {
	client := NewOllamaClient("http://localhost:0", nil)
	_, err := client.Stream(context.Background(), &Request{
		Model:          "m",
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: "json",
		Tools:          []ToolDefinition{{Name: "t"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response_format")
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)

		resp := map[string]any{
			"message": map[string]any{"role": "assistant", "content": `{"route":"answer"}`},
			"done":    true,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	text, err := client.Chat(context.Background(), &Request{
		Model:          "m",
		Messages:       []Message{{Role: "user", Content: "route this"}},
		ResponseFormat: "json",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"route":"answer"}`, text)
}

func TestOllamaChatHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"backend exploded"}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	_, err := client.Chat(context.Background(), &Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "PROVIDER_ERROR", provErr.Code())
	assert.Contains(t, provErr.Error(), "backend exploded")
}

func TestOllamaListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:8b"},{"name":"qwen3:4b"}]}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, nil)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "qwen3:4b"}, models)

	require.NoError(t, client.Ping(context.Background()))
}

func TestOllamaSamplingOptions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Options map[string]any `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Options
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer server.Close()

	temp := 0.2
	topK := 40
	client := NewOllamaClient(server.URL, nil)
	_, err := client.Chat(context.Background(), &Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Params:   Params{Temperature: &temp, TopK: &topK, Stop: []string{"</s>"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, float64(40), got["top_k"])
	assert.Equal(t, []any{"</s>"}, got["stop"])
}
