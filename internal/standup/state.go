// Package standup implements the standup conversation: the state threaded
// through the graph, the step nodes, and the graph wiring.
package standup

import "github.com/dailysync/standup-bot/internal/llm"

// Step identifiers. Every node sets State.NextStep to one of these (or
// convograph.END) before returning.
const (
	StepInitialize      = "initialize"
	StepFetchActivities = "fetch_activities"
	StepGenerateDraft   = "generate_draft"
	StepAnalyzeDraft    = "analyze_draft"
	StepAskFollowup     = "ask_followup"
	StepFinalize        = "finalize"
)

// UserInfo identifies the user the conversation belongs to.
// Immutable after the session is created.
type UserInfo struct {
	// ID is the platform-scoped user identifier.
	ID string `json:"id"`

	// DisplayName is the human-readable name used in the final update.
	DisplayName string `json:"display_name"`

	// ExternalHandle is an optional external-account handle
	// (e.g. a source-forge username) used when fetching activities.
	ExternalHandle string `json:"external_handle,omitempty"`
}

// Draft is the structured work product being iteratively refined.
type Draft struct {
	Accomplishments []string `json:"accomplishments"`
	Plans           []string `json:"plans"`
	Blockers        []string `json:"blockers"`
}

// IsZero reports whether the draft has no content at all.
func (d Draft) IsZero() bool {
	return len(d.Accomplishments) == 0 && len(d.Plans) == 0 && len(d.Blockers) == 0
}

// Activities are the raw source-of-truth facts draft generation consumes.
// Set once by fetch_activities, read-only afterwards.
type Activities struct {
	Accomplishments []string `json:"accomplishments"`
	Plans           []string `json:"plans"`
	Blockers        []string `json:"blockers"`
}

// State is the conversation state threaded through the graph.
type State struct {
	// Messages is the chronological conversation history, append-only
	// during a run. It is replayed verbatim into generation calls.
	Messages []llm.Message `json:"messages"`

	// UserInfo is fixed at session creation.
	UserInfo UserInfo `json:"user_info"`

	// CurrentDraft is the draft under refinement.
	CurrentDraft Draft `json:"current_draft"`

	// Activities are the fetched facts the draft is grounded on.
	Activities Activities `json:"activities"`

	// NextStep is the node to execute next, or convograph.END.
	NextStep string `json:"next_step"`
}

// NewState seeds the conversation state for a fresh session.
func NewState(user UserInfo) State {
	return State{
		Messages: []llm.Message{
			llm.UserMessage("Let's start my standup update."),
		},
		UserInfo: user,
		NextStep: StepInitialize,
	}
}

// AppendHuman returns a copy of the state with a user message appended.
// The history is copied so a paused state can be extended more than once
// without the copies sharing a backing array.
func (s State) AppendHuman(text string) State {
	s.Messages = appendMessage(s.Messages, llm.UserMessage(text))
	return s
}

// AppendAssistant returns a copy of the state with an assistant message
// appended.
func (s State) AppendAssistant(text string) State {
	s.Messages = appendMessage(s.Messages, llm.AssistantMessage(text))
	return s
}

func appendMessage(history []llm.Message, msg llm.Message) []llm.Message {
	out := make([]llm.Message, len(history), len(history)+1)
	copy(out, history)
	return append(out, msg)
}

// LastAssistant returns the trailing message content if it is an
// assistant message, else "".
func (s State) LastAssistant() (string, bool) {
	if len(s.Messages) == 0 {
		return "", false
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != llm.RoleAssistant {
		return "", false
	}
	return last.Content, true
}
