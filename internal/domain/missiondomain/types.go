// Package missiondomain holds the Mission and MissionAction aggregates:
// a named testing campaign (hypothesis + goal) against one or more
// targets, and the individual technique attempts recorded against it.
package missiondomain

import "time"

// Status is the lifecycle state of a Mission.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known Mission Status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Type classifies the kind of objective a Mission pursues.
type Type string

const (
	TypePromptInjection Type = "prompt_injection"
	TypeBusinessLogic   Type = "business_logic"
	TypeAuthBypass      Type = "auth_bypass"
	TypeRecon           Type = "recon"
	TypeGeneral         Type = "general"
)

// Valid reports whether t is a known Mission Type.
func (t Type) Valid() bool {
	switch t {
	case TypePromptInjection, TypeBusinessLogic, TypeAuthBypass, TypeRecon, TypeGeneral:
		return true
	}
	return false
}

// Mission is a named campaign (hypothesis + goal) against one or more
// targets. CompletedAt is set iff Status is StatusCompleted, and is
// never before CreatedAt.
type Mission struct {
	ID                    string
	Name                  string
	Description           string
	Type                  Type
	Hypothesis            string
	Goal                  string
	Scope                 map[string]string
	Findings              string
	Patterns              string
	SuccessfulTechniques  []string
	ConfidenceScore       float64
	Status                Status
	ExtraData             map[string]string
	GoalEmbedding         []float32
	HypothesisEmbedding   []float32
	CreatedAt             time.Time
	CompletedAt           *time.Time
}

// ActionType classifies what a MissionAction represents.
type ActionType string

const (
	ActionTypePayloadTest ActionType = "payload_test"
	ActionTypeRecon       ActionType = "recon"
	ActionTypeExploit     ActionType = "exploit"
	ActionTypeAnalysis    ActionType = "analysis"
)

// Valid reports whether a is a known ActionType.
func (a ActionType) Valid() bool {
	switch a {
	case ActionTypePayloadTest, ActionTypeRecon, ActionTypeExploit, ActionTypeAnalysis:
		return true
	}
	return false
}

// MissionAction is one attempted technique within a Mission, optionally
// linked to the HttpRequests that produced it and embedded for recall.
type MissionAction struct {
	ID              string
	MissionID       string
	ActionType      ActionType
	Technique       string
	Payload         string
	Result          string
	Success         bool
	Learning        string
	ActionEmbedding []float32
	ResultEmbedding []float32
	MetaData        map[string]string
	HTTPRequestIDs  []string
	CreatedAt       time.Time
}

// Summary is the read-model returned by get_mission_context: total
// actions, successful actions, success rate, unique techniques tried,
// and up to five most recent actions.
type Summary struct {
	Mission
	TotalActions     int
	SuccessfulCount  int
	SuccessRate      float64
	UniqueTechniques int
	RecentActions    []MissionAction
}
