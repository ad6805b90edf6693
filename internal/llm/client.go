// Package llm provides the generation client and the Gateway that
// serializes access to it. The underlying resource is rate- and
// cost-constrained, so all callers share one execution slot.
package llm

import "context"

// Role identifies the sender of a conversation message.
type Role string

// Standard message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request configures one completion call. Messages are replayed to the
// model in order, verbatim.
type Request struct {
	// System is the system instruction, sent before the history.
	System string `json:"system,omitempty"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// Model overrides the client's default model when non-empty.
	Model string `json:"model,omitempty"`

	// MaxTokens caps the completion length. 0 means the client default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature overrides sampling temperature when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the output of a completion call.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Client is a connection to a text-generation resource. Implementations
// must be safe for concurrent use; the Gateway nevertheless serializes
// calls to a single slot.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
