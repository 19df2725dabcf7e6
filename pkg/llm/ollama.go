package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultRequestTimeout bounds a single non-streaming HTTP exchange.
	defaultRequestTimeout = 120 * time.Second

	// scanBufferSize is the max size of one NDJSON line from the backend.
	scanBufferSize = 1 << 20
)

// OllamaClient talks to an Ollama-compatible backend over HTTP.
// Streaming uses POST {base}/api/chat with newline-delimited JSON frames.
type OllamaClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewOllamaClient creates a client for the given base URL (no trailing slash
// required). A nil httpClient falls back to a default with a request timeout;
// streaming requests use a client without the overall timeout so long
// generations are not cut off mid-stream.
func NewOllamaClient(baseURL string, httpClient *http.Client) *OllamaClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  slog.Default(),
	}
}

// Name implements Provider.
func (c *OllamaClient) Name() string { return "ollama" }

// --- Wire types ---

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaMessage     `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
	Tools    []ollamaToolWrapper `json:"tools,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Thinking  string           `json:"thinking,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaToolWrapper struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaChatResponse struct {
	Message         *ollamaMessage `json:"message"`
	Done            bool           `json:"done"`
	Error           string         `json:"error"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// --- Provider implementation ---

// Stream implements Provider. The returned channel carries delta, tool-call,
// usage and done/error events in arrival order and is closed when the HTTP
// stream ends.
func (c *OllamaClient) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildChatRequest(req, true))
	if err != nil {
		return nil, &Error{Message: "encode chat request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: "build chat request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Streaming must not inherit the overall client timeout.
	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: "chat request failed", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, &Error{Message: fmt.Sprintf("chat request returned %s: %s", resp.Status, readErrorBody(resp.Body))}
	}

	out := make(chan Event)
	go c.readStream(resp.Body, out)
	return out, nil
}

// readStream decodes NDJSON frames into events until done or EOF.
func (c *OllamaClient) readStream(body io.ReadCloser, out chan<- Event) {
	defer close(out)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame ollamaChatResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			out <- &ErrorEvent{Message: fmt.Sprintf("malformed stream frame: %v", err)}
			return
		}
		if frame.Error != "" {
			out <- &ErrorEvent{Message: frame.Error}
			return
		}

		if msg := frame.Message; msg != nil {
			if msg.Thinking != "" {
				out <- &DeltaThinkingEvent{Text: msg.Thinking}
			}
			if msg.Content != "" {
				out <- &DeltaTextEvent{Text: msg.Content}
			}
			for _, tc := range msg.ToolCalls {
				out <- &ToolCallEvent{Call: ToolCall{
					ID:        uuid.NewString(),
					Name:      tc.Function.Name,
					Arguments: normalizeArguments(tc.Function.Arguments),
				}}
			}
		}

		if frame.Done {
			if frame.PromptEvalCount > 0 || frame.EvalCount > 0 {
				out <- &UsageEvent{
					PromptTokens:     frame.PromptEvalCount,
					CompletionTokens: frame.EvalCount,
				}
			}
			out <- &DoneEvent{}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- &ErrorEvent{Message: fmt.Sprintf("stream read failed: %v", err)}
		return
	}
	// EOF without done:true — the backend closed the connection early.
	out <- &ErrorEvent{Message: "stream ended without done frame"}
}

// Chat implements Provider using a non-streaming exchange.
func (c *OllamaClient) Chat(ctx context.Context, req *Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(c.buildChatRequest(req, false))
	if err != nil {
		return "", &Error{Message: "encode chat request", Cause: err}
	}

	var frame ollamaChatResponse
	if err := c.postJSON(ctx, "/api/chat", body, &frame); err != nil {
		return "", err
	}
	if frame.Error != "" {
		return "", &Error{Message: frame.Error}
	}
	if frame.Message == nil {
		return "", &Error{Message: "chat response has no message"}
	}
	return frame.Message.Content, nil
}

// ListModels implements Provider via GET /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &Error{Message: "build tags request", Cause: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: "tags request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Message: fmt.Sprintf("tags request returned %s", resp.Status)}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &Error{Message: "decode tags response", Cause: err}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping implements Provider. A successful model listing is the liveness probe.
func (c *OllamaClient) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

// --- Helpers ---

func (c *OllamaClient) buildChatRequest(req *Request, stream bool) *ollamaChatRequest {
	wire := &ollamaChatRequest{
		Model:    req.Model,
		Stream:   stream,
		Format:   req.ResponseFormat,
		Messages: make([]ollamaMessage, 0, len(req.Messages)),
		Options:  buildOptions(req.Params),
	}

	for _, m := range req.Messages {
		om := ollamaMessage{
			Role:     m.Role,
			Content:  m.Content,
			Thinking: m.Thinking,
			ToolName: m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaToolCallFunction{
					Name:      tc.Name,
					Arguments: json.RawMessage(tc.Arguments),
				},
			})
		}
		wire.Messages = append(wire.Messages, om)
	}

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, ollamaToolWrapper{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			},
		})
	}
	return wire
}

func buildOptions(p Params) map[string]any {
	opts := make(map[string]any)
	if p.Temperature != nil {
		opts["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		opts["top_p"] = *p.TopP
	}
	if p.TopK != nil {
		opts["top_k"] = *p.TopK
	}
	if p.Seed != nil {
		opts["seed"] = *p.Seed
	}
	if p.NumCtx != nil {
		opts["num_ctx"] = *p.NumCtx
	}
	if len(p.Stop) > 0 {
		opts["stop"] = p.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// normalizeArguments ensures tool-call arguments reach handlers as a JSON
// object string even when the backend sends them unset.
func normalizeArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	return string(trimmed)
}

func (c *OllamaClient) postJSON(ctx context.Context, path string, body []byte, dst any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &Error{Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &Error{Message: fmt.Sprintf("request returned %s: %s", resp.Status, readErrorBody(resp.Body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &Error{Message: "decode response", Cause: err}
	}
	return nil
}

// readErrorBody extracts a short error description from a failed response.
func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable body"
	}
	var wrapped struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error != "" {
		return wrapped.Error
	}
	return strings.TrimSpace(string(raw))
}
