// Package planner defines the interface to the planning entity, the
// external LLM collaborator that decides, turn by turn, whether to request
// another computation or finalize the analysis.
package planner

import "context"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the conversation. The orchestrator owns the
// history and passes the full transcript on every request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Planner is the synchronous request/response interface the orchestrator
// drives. Send returns the raw response text; interpreting it against the
// action contract is the orchestrator's job, not the client's.
type Planner interface {
	Send(ctx context.Context, messages []Message) (string, error)
}
