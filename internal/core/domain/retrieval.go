package domain

import "strings"

// MetadataFilter restricts a similarity query to chunks whose metadata field
// equals the given value. Applied server-side by the adapter, never as a
// post-filter, so top-k stays correct.
type MetadataFilter struct {
	Field string
	Value string
}

// RetrievalResult pairs a stored chunk with its [0,1] relevance score.
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type ConversationTurn struct {
	Role    string `json:"type"`
	Content string `json:"content"`
}

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// ToolInvocationRecord is one entry of the audit trail accumulated during a
// single orchestrator run.
type ToolInvocationRecord struct {
	Tool    string `json:"tool"`
	Outcome string `json:"outcome"`
}

const (
	SourceDatabase = "From Database"
	SourceExternal = "From External Source"
)

// AgentQuery is one question put to the fallback orchestrator.
type AgentQuery struct {
	Question  string             `json:"query"`
	ThreadID  string             `json:"thread_id"`
	Language  string             `json:"language,omitempty"`
	Namespace string             `json:"namespace,omitempty"`
	Context   []ConversationTurn `json:"chat_context,omitempty"`
}

// AgentAnswer is the final annotated answer of one orchestrator run.
type AgentAnswer struct {
	Text              string                 `json:"text"`
	Source            string                 `json:"source"`
	Tools             []ToolInvocationRecord `json:"tools"`
	TranslationNotice string                 `json:"translation_notice,omitempty"`
}

// ToolNames lists the tools of the audit trail in invocation order.
func (a AgentAnswer) ToolNames() []string {
	names := make([]string, 0, len(a.Tools))
	for _, record := range a.Tools {
		names = append(names, record.Tool)
	}
	return names
}

// Annotated renders the answer with its source prefix, the list of tools
// used, and the optional translation notice, the form delivered to clients.
func (a AgentAnswer) Annotated() string {
	var sb strings.Builder
	if a.Source != "" {
		sb.WriteString(a.Source)
		sb.WriteString(": ")
	}
	sb.WriteString(a.Text)
	if names := a.ToolNames(); len(names) > 0 {
		sb.WriteString("\n\nTools: [")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("]")
	}
	if a.TranslationNotice != "" {
		sb.WriteString("\n\n")
		sb.WriteString(a.TranslationNotice)
	}
	return sb.String()
}

// StreamRequest is the inbound message of the streaming protocol.
type StreamRequest struct {
	Question  string             `json:"question"`
	Language  string             `json:"language,omitempty"`
	Namespace string             `json:"namespace,omitempty"`
	Context   []ConversationTurn `json:"chat_context,omitempty"`
	// AgentMode selects the full fallback loop instead of the lower-latency
	// direct retrieval-plus-generation path.
	AgentMode bool `json:"agent_mode,omitempty"`
}

const (
	StreamEventChunk = "stream"
	StreamEventEnd   = "end"
	StreamEventError = "error"
)

type StreamEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
