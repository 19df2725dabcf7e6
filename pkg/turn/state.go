package turn

import (
	"github.com/parietal-ai/parietal/pkg/world"
)

// Route values produced by the router.
const (
	RouteAnswer  = "answer"
	RouteContext = "context"
	RouteWorld   = "world"
)

// maxIssues caps runtime and context issue lists; the oldest entries are
// dropped past the cap.
const maxIssues = 64

// State is the per-turn working document. It is created by the runner,
// owned exclusively by the turn, and discarded at turn end. Only
// serializable data lives here; services travel separately through Deps and
// Services.
type State struct {
	Task    Task         `json:"task"`
	Runtime Runtime      `json:"runtime"`
	Context ContextState `json:"context"`
	Final   Final        `json:"final"`
	World   world.World  `json:"world"`

	// Emitter is installed by the runner before nodes execute.
	Emitter *Emitter `json:"-"`
}

// NewState builds the initial state for a user message.
func NewState(userText, nowISO, timezone string, w world.World) *State {
	return &State{
		Task: Task{UserText: userText, Language: "en"},
		Runtime: Runtime{
			NowISO:   nowISO,
			Timezone: timezone,
		},
		World: w,
	}
}

// Task describes what the turn is about.
type Task struct {
	UserText string `json:"user_text"`
	Language string `json:"language"`
	Route    string `json:"route,omitempty"`
}

// Runtime carries per-turn bookkeeping written by the runner and nodes.
type Runtime struct {
	TurnID    string   `json:"turn_id"`
	NodeTrace []string `json:"node_trace"`
	Status    string   `json:"status,omitempty"`
	Issues    []string `json:"issues"`
	NowISO    string   `json:"now_iso"`
	Timezone  string   `json:"timezone"`
}

// AddIssue appends a diagnostic line, dropping the oldest past the cap.
func (r *Runtime) AddIssue(issue string) {
	r.Issues = appendCapped(r.Issues, issue)
}

// ContextState is the builder-shaped aggregate filled on the context path.
type ContextState struct {
	Sources       []Source       `json:"sources"`
	MemoryRequest *MemoryRequest `json:"memory_request,omitempty"`
	Issues        []string       `json:"issues"`
}

// AddIssue appends a context diagnostic, dropping the oldest past the cap.
func (c *ContextState) AddIssue(issue string) {
	c.Issues = appendCapped(c.Issues, issue)
}

// AddSource appends a source block.
func (c *ContextState) AddSource(s Source) {
	c.Sources = append(c.Sources, s)
}

// Source is one tagged context block.
type Source struct {
	Kind  string           `json:"kind"` // "memories", "notes", "history"
	Title string           `json:"title"`
	Items []map[string]any `json:"items"`
	Meta  map[string]any   `json:"meta,omitempty"`
}

// MemoryRequest is the context builder's instruction to the retriever.
type MemoryRequest struct {
	K     int    `json:"k"`
	Query string `json:"query,omitempty"`
}

// Final holds the turn outcome.
type Final struct {
	Answer string `json:"answer"`
}

func appendCapped(list []string, entry string) []string {
	list = append(list, entry)
	if len(list) > maxIssues {
		list = list[len(list)-maxIssues:]
	}
	return list
}
