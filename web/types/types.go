package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// NoQueryMarker is reported as the query text when an answer was produced
// without running a database query.
const NoQueryMarker = "No valid query generated"

// AgentMessage represents a message in the format expected by the agent and LLM.
type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage represents a single message in the chat, stored in the DB.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// Session represents a chat session.
type Session struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	LastActive time.Time
	Title      string
	IsActive   bool
}

// Table is a tabular view of result rows. Columns are ordered; each row holds
// one value per column (nil when the row lacks that column).
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Response is the uniform result of a chat turn.
type Response struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html,omitempty"`
	Query      string `json:"query"`
	Table      Table  `json:"table"`
}

// HasQuery reports whether the response was backed by an executed query.
func (r Response) HasQuery() bool {
	return r.Query != "" && r.Query != NoQueryMarker
}
