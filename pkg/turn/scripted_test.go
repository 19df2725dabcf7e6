package turn

import (
	"context"
	"strings"
	"sync"

	"github.com/parietal-ai/parietal/pkg/events"
	"github.com/parietal-ai/parietal/pkg/llm"
)

// scriptedProvider replays canned event sequences, one per Stream call, and
// records every request it receives.
type scriptedProvider struct {
	mu       sync.Mutex
	steps    [][]llm.Event
	requests []*llm.Request
	name     string
}

func newScriptedProvider(steps ...[]llm.Event) *scriptedProvider {
	return &scriptedProvider{steps: steps, name: "scripted"}
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	var step []llm.Event
	if len(p.steps) > 0 {
		step = p.steps[0]
		p.steps = p.steps[1:]
	} else {
		step = []llm.Event{&llm.DoneEvent{}}
	}
	p.mu.Unlock()

	out := make(chan llm.Event, len(step))
	for _, ev := range step {
		out <- ev
	}
	close(out)
	return out, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, req *llm.Request) (string, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for ev := range stream {
		if delta, ok := ev.(*llm.DeltaTextEvent); ok {
			text.WriteString(delta.Text)
		}
	}
	return text.String(), nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"scripted"}, nil
}

func (p *scriptedProvider) Ping(ctx context.Context) error { return nil }

func textDone(text string) []llm.Event {
	return []llm.Event{&llm.DeltaTextEvent{Text: text}, &llm.DoneEvent{}}
}

// collectEvents drains bus through Close and returns everything emitted.
func collectEvents(bus *events.Bus) []events.Event {
	bus.Close()
	return bus.Events()
}

func kindsOf(evs []events.Event) []events.Kind {
	kinds := make([]events.Kind, len(evs))
	for i, ev := range evs {
		kinds[i] = ev.Kind
	}
	return kinds
}
