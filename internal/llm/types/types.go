package types

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`    // user, assistant, system
	Content string `json:"content"` // message text
}

// Request is one reasoning call: fixed instructions, the run's briefing and
// the restored conversation turns (oldest first).
type Request struct {
	Instructions string    `json:"instructions"`
	Briefing     string    `json:"briefing"`
	History      []Message `json:"history,omitempty"`

	// Purpose and EntityID label the call for usage accounting.
	Purpose  string `json:"purpose,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

// Messages returns the chat sequence sent to the provider: instructions as
// the system message, then history, then the briefing as the user turn.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.Instructions != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.Instructions})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: RoleUser, Content: r.Briefing})
	return msgs
}

// Response is the raw reply of a reasoning call
type Response struct {
	Text         string     `json:"text"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        TokenUsage `json:"usage"`
}

// TokenUsage tracks token usage
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // input tokens
	CompletionTokens int `json:"completion_tokens"` // output tokens
	TotalTokens      int `json:"total_tokens"`      // total tokens
}
