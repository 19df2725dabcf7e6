package turn

import (
	"time"

	"github.com/parietal-ai/parietal/pkg/events"
)

// Emitter is the node-facing façade over the event factory and bus. Nodes
// never touch the bus directly; they open spans and stream through them.
type Emitter struct {
	factory *events.Factory
	bus     *events.Bus
}

// NewEmitter wires a factory and bus into an emitter.
func NewEmitter(factory *events.Factory, bus *events.Bus) *Emitter {
	return &Emitter{factory: factory, bus: bus}
}

// StartTurn emits turn_start.
func (e *Emitter) StartTurn(userText, provider string, models map[string]string) {
	e.bus.Emit(e.factory.New(events.KindTurnStart, events.TurnStartPayload{
		UserText: userText,
		Provider: provider,
		Models:   models,
	}))
}

// EndTurnOK emits turn_end_ok with the turn duration.
func (e *Emitter) EndTurnOK(duration time.Duration) {
	e.bus.Emit(e.factory.New(events.KindTurnEndOK, events.TurnEndOKPayload{
		DurationMs: duration.Milliseconds(),
	}))
}

// EndTurnError emits turn_end_error.
func (e *Emitter) EndTurnError(code, message string) {
	e.bus.Emit(e.factory.New(events.KindTurnEndError, events.TurnEndErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// WorldUpdate emits a mid-turn world_update snapshot.
func (e *Emitter) WorldUpdate(w map[string]any) {
	e.bus.Emit(e.factory.New(events.KindWorldUpdate, events.WorldUpdatePayload{World: w}))
}

// WorldCommit emits the durable world transition for the turn.
func (e *Emitter) WorldCommit(before, after, delta map[string]any) {
	e.bus.Emit(e.factory.New(events.KindWorldCommit, events.WorldCommitPayload{
		WorldBefore: before,
		WorldAfter:  after,
		Delta:       delta,
	}))
}

// AssistantStart opens an assistant message group and returns its id.
func (e *Emitter) AssistantStart() string {
	id := e.factory.NewMessageID()
	e.bus.Emit(e.factory.New(events.KindAssistantStart, events.AssistantStartPayload{MessageID: id}))
	return id
}

// AssistantDelta streams one chunk of assistant text.
func (e *Emitter) AssistantDelta(messageID, text string) {
	e.bus.Emit(e.factory.New(events.KindAssistantDelta, events.AssistantDeltaPayload{
		MessageID: messageID,
		Text:      text,
	}))
}

// AssistantEnd closes an assistant message group with the full text.
func (e *Emitter) AssistantEnd(messageID, fullText string) {
	e.bus.Emit(e.factory.New(events.KindAssistantEnd, events.AssistantEndPayload{
		MessageID: messageID,
		Text:      fullText,
	}))
}

// AssistantFull emits a complete start/delta/end group for text produced in
// one piece.
func (e *Emitter) AssistantFull(text string) {
	id := e.AssistantStart()
	e.AssistantDelta(id, text)
	e.AssistantEnd(id, text)
}

// Log emits a log_line outside any span.
func (e *Emitter) Log(level, message, logger string, fields map[string]any) {
	e.bus.Emit(e.factory.New(events.KindLogLine, events.LogLinePayload{
		Level:   level,
		Message: message,
		Logger:  logger,
		Fields:  fields,
	}))
}

// Span opens a node span: node_start followed by thinking_start. The caller
// must close it with exactly one EndOK or EndError.
func (e *Emitter) Span(nodeID, label string) *Span {
	spanID := e.factory.NewSpanID(nodeID)
	e.bus.Emit(e.factory.NewSpanned(events.KindNodeStart, nodeID, spanID,
		events.NodeStartPayload{Label: label}))
	e.bus.Emit(e.factory.NewSpanned(events.KindThinkingStart, nodeID, spanID, nil))
	return &Span{
		emitter: e,
		nodeID:  nodeID,
		spanID:  spanID,
		started: time.Now(),
	}
}

// Span is a node-scoped timed region grouping thinking deltas, tool events
// and log lines.
type Span struct {
	emitter *Emitter
	nodeID  string
	spanID  string
	started time.Time
	ended   bool
}

// ID returns the opaque span id.
func (s *Span) ID() string { return s.spanID }

// Thinking streams one chunk of model reasoning.
func (s *Span) Thinking(text string) {
	if text == "" {
		return
	}
	s.emit(events.KindThinkingDelta, events.ThinkingDeltaPayload{Text: text})
}

// Log emits a span-scoped log_line.
func (s *Span) Log(level, message, logger string, fields map[string]any) {
	s.emit(events.KindLogLine, events.LogLinePayload{
		Level:   level,
		Message: message,
		Logger:  logger,
		Fields:  fields,
	})
}

// ToolCall records the model requesting a tool.
func (s *Span) ToolCall(callID, name, arguments string) {
	s.emit(events.KindToolCall, events.ToolCallPayload{
		CallID:    callID,
		Name:      name,
		Arguments: arguments,
	})
}

// ToolResult records a completed tool invocation.
func (s *Span) ToolResult(callID, name, result string, ok bool) {
	s.emit(events.KindToolResult, events.ToolResultPayload{
		CallID: callID,
		Name:   name,
		Result: result,
		OK:     ok,
	})
}

// EndOK closes the span successfully: thinking_end then node_end_ok.
func (s *Span) EndOK() {
	if s.ended {
		return
	}
	s.ended = true
	s.emit(events.KindThinkingEnd, nil)
	s.emit(events.KindNodeEndOK, events.NodeEndOKPayload{
		DurationMs: time.Since(s.started).Milliseconds(),
	})
}

// EndError closes the span with a failure: thinking_end then node_end_error.
func (s *Span) EndError(code, message string, details map[string]any) {
	if s.ended {
		return
	}
	s.ended = true
	s.emit(events.KindThinkingEnd, nil)
	s.emit(events.KindNodeEndError, events.NodeEndErrorPayload{
		Code:       code,
		Message:    message,
		Details:    details,
		DurationMs: time.Since(s.started).Milliseconds(),
	})
}

func (s *Span) emit(kind events.Kind, payload any) {
	s.emitter.bus.Emit(s.emitter.factory.NewSpanned(kind, s.nodeID, s.spanID, payload))
}
