package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Factory builds event records for one turn. It stamps turn_id and ts_ms;
// seq is left at zero and assigned by the bus at enqueue so ordering is
// decided in the same critical section as queue insertion.
type Factory struct {
	turnID string
	now    func() time.Time
}

// NewFactory creates a Factory for turnID.
func NewFactory(turnID string) *Factory {
	return &Factory{turnID: turnID, now: time.Now}
}

// TurnID returns the turn this factory stamps.
func (f *Factory) TurnID() string { return f.turnID }

// NewSpanID yields a fresh opaque span id scoped to a node.
func (f *Factory) NewSpanID(nodeID string) string {
	return nodeID + ":" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewMessageID yields a fresh id for an assistant message group.
func (f *Factory) NewMessageID() string {
	return "msg:" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// New builds an event with the envelope stamped and the given payload.
func (f *Factory) New(kind Kind, payload any) Event {
	return Event{
		TurnID:  f.turnID,
		TSMs:    f.now().UnixMilli(),
		Kind:    kind,
		Payload: payload,
	}
}

// NewSpanned builds an event attached to a node span.
func (f *Factory) NewSpanned(kind Kind, nodeID, spanID string, payload any) Event {
	ev := f.New(kind, payload)
	ev.NodeID = nodeID
	ev.SpanID = spanID
	return ev
}
