// Package targetcontext holds the TargetContext aggregate: an
// append-only, versioned chain of human/agent notes attached to a
// Target.
package targetcontext

import "time"

// ChangeType classifies why a new TargetContext version was created.
type ChangeType string

const (
	ChangeUserEdit    ChangeType = "user_edit"
	ChangeAgentUpdate ChangeType = "agent_update"
	ChangeRollback    ChangeType = "rollback"
	ChangeSystem      ChangeType = "system"
)

// Valid reports whether c is a known ChangeType.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeUserEdit, ChangeAgentUpdate, ChangeRollback, ChangeSystem:
		return true
	}
	return false
}

// TargetContext is one immutable version in a Target's note history.
// Version numbers are 1-based and dense per target; version 1 has no
// parent (ParentVersionID is nil). A later version's ParentVersionID
// references the version that was current when it was created, or,
// for a rollback, the version whose bodies it copies. Rows are
// append-only: no UPDATE after insert.
type TargetContext struct {
	ID              string
	TargetID        string
	Version         int
	UserContext     string
	AgentContext    string
	ParentVersionID *string
	ChangeType      ChangeType
	ChangeSummary   string
	CreatedBy       string // "user" | "agent" | "system"
	IsMajorVersion  bool
	TokensCount     int
	CreatedAt       time.Time
}

// SearchParams filters search_contexts (substring match over
// UserContext, AgentContext, and ChangeSummary).
type SearchParams struct {
	TargetIDs []string
	Query     string
	Limit     int
}
