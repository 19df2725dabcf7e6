package e2e

import (
	"context"
	"strings"
	"sync"

	"github.com/parietal-ai/parietal/pkg/llm"
)

// LLMScriptEntry defines a single scripted model response.
type LLMScriptEntry struct {
	// Events are delivered verbatim. When nil, Text is wrapped as a single
	// delta_text followed by done.
	Events []llm.Event
	Text   string
	// Err fails the Stream call itself.
	Err error
}

// ScriptedProvider implements llm.Provider with a sequential script. Each
// Stream call consumes the next entry; calls past the script's end return a
// bare done so a misbehaving test fails on assertions rather than deadlocks.
type ScriptedProvider struct {
	mu       sync.Mutex
	script   []LLMScriptEntry
	index    int
	captured []*llm.Request
}

// NewScriptedProvider creates an empty ScriptedProvider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// Add appends one entry to the script.
func (p *ScriptedProvider) Add(entry LLMScriptEntry) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, entry)
	return p
}

// AddText appends a plain text completion.
func (p *ScriptedProvider) AddText(text string) *ScriptedProvider {
	return p.Add(LLMScriptEntry{Text: text})
}

// AddToolCall appends a completion that only requests one tool call.
func (p *ScriptedProvider) AddToolCall(id, name, argsJSON string) *ScriptedProvider {
	return p.Add(LLMScriptEntry{Events: []llm.Event{
		&llm.ToolCallEvent{Call: llm.ToolCall{ID: id, Name: name, Arguments: argsJSON}},
		&llm.DoneEvent{},
	}})
}

// Requests returns every request captured so far.
func (p *ScriptedProvider) Requests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.Request(nil), p.captured...)
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Stream implements llm.Provider.
func (p *ScriptedProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.captured = append(p.captured, req)
	var entry LLMScriptEntry
	if p.index < len(p.script) {
		entry = p.script[p.index]
		p.index++
	}
	p.mu.Unlock()

	if entry.Err != nil {
		return nil, entry.Err
	}

	evs := entry.Events
	if evs == nil {
		evs = []llm.Event{&llm.DeltaTextEvent{Text: entry.Text}, &llm.DoneEvent{}}
	}
	out := make(chan llm.Event, len(evs))
	for _, ev := range evs {
		out <- ev
	}
	close(out)
	return out, nil
}

// Chat implements llm.Provider.
func (p *ScriptedProvider) Chat(ctx context.Context, req *llm.Request) (string, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for ev := range stream {
		switch ev := ev.(type) {
		case *llm.DeltaTextEvent:
			text.WriteString(ev.Text)
		case *llm.ErrorEvent:
			return "", &llm.Error{Message: ev.Message}
		}
	}
	return text.String(), nil
}

// ListModels implements llm.Provider.
func (p *ScriptedProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"scripted"}, nil
}

// Ping implements llm.Provider.
func (p *ScriptedProvider) Ping(ctx context.Context) error { return nil }
