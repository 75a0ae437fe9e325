package mcpserver

// Args structs mirror spec §6's tool parameter lists. Fields whose
// value may arrive from an LLM caller in more than one JSON shape
// (booleans as "yes"/"on", maps as a JSON-encoded string) are typed
// `any` and normalized by coerceBool/coerceMap in the handler, ahead
// of validator/v10's struct-tag pass on the rest.

// HTTPRequestArgs is http_request's input, per spec §4.F. Headers,
// Params, Cookies, and Auth arrive from the LLM caller either as a
// JSON object or as a JSON-encoded object string, so they are typed
// `any` and normalized by coerceMap in the handler, same as
// FollowRedirects via coerceBool.
type HTTPRequestArgs struct {
	URL             string `json:"url" validate:"required,url" jsonschema_description:"Absolute URL to request"`
	Method          string `json:"method,omitempty" jsonschema_description:"HTTP method; defaults to GET"`
	Headers         any    `json:"headers,omitempty"`
	Params          any    `json:"params,omitempty" jsonschema_description:"Query parameters merged into the URL"`
	Cookies         any    `json:"cookies,omitempty" jsonschema_description:"Cookies overlaid on top of cookie_profile"`
	Data            string `json:"data,omitempty" jsonschema_description:"Raw or JSON-encoded request body"`
	CookieProfile   string `json:"cookie_profile,omitempty" jsonschema_description:"Name of a cookie-session:// profile to resolve"`
	FollowRedirects any    `json:"follow_redirects,omitempty"`
	Auth            any    `json:"auth,omitempty" jsonschema_description:"{username, password}"`
	MissionID       string `json:"mission_id,omitempty" jsonschema_description:"Associates the logged request with a mission"`
}

// CreateTargetArgs is create_target's input.
type CreateTargetArgs struct {
	Host      string `json:"host" validate:"required"`
	Port      *int   `json:"port,omitempty"`
	Protocol  string `json:"protocol,omitempty" jsonschema_description:"e.g. http, https"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status,omitempty" jsonschema_enum:"active,inactive,blocked,completed"`
	RiskLevel string `json:"risk_level,omitempty" jsonschema_enum:"low,medium,high,critical"`
}

// UpdateTargetStatusArgs is update_target_status's input.
type UpdateTargetStatusArgs struct {
	TargetID  string `json:"target_id" validate:"required"`
	Status    string `json:"status,omitempty" jsonschema_enum:"active,inactive,blocked,completed"`
	RiskLevel string `json:"risk_level,omitempty" jsonschema_enum:"low,medium,high,critical"`
	Title     string `json:"title,omitempty"`
}

// GetTargetSummaryArgs is get_target_summary's input.
type GetTargetSummaryArgs struct {
	TargetID string `json:"target_id" validate:"required"`
}

// SearchTargetsArgs is search_targets's input.
type SearchTargetsArgs struct {
	Status    string `json:"status,omitempty" jsonschema_enum:"active,inactive,blocked,completed"`
	RiskLevel string `json:"risk_level,omitempty" jsonschema_enum:"low,medium,high,critical"`
	Protocol  string `json:"protocol,omitempty"`
	Query     string `json:"query,omitempty" jsonschema_description:"Substring match against host or title"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// GetTargetContextArgs is get_target_context's input, per spec §6.
type GetTargetContextArgs struct {
	TargetID       string `json:"target_id" validate:"required"`
	VersionID      string `json:"version_id,omitempty"`
	Version        int    `json:"version,omitempty"`
	IncludeHistory any    `json:"include_history,omitempty"`
}

// UpdateTargetContextArgs is update_target_context's input, per spec §6.
type UpdateTargetContextArgs struct {
	TargetID       string `json:"target_id" validate:"required"`
	UserContext    string `json:"user_context,omitempty"`
	AgentContext   string `json:"agent_context,omitempty"`
	AppendMode     any    `json:"append_mode,omitempty"`
	IsMajorVersion any    `json:"is_major_version,omitempty"`
	ChangeSummary  string `json:"change_summary,omitempty"`
	CreatedBy      string `json:"created_by,omitempty" jsonschema_description:"Defaults to \"agent\""`
}

// CreateMissionArgs is create_mission's input.
type CreateMissionArgs struct {
	TargetID    string `json:"target_id" validate:"required"`
	MissionType string `json:"mission_type" validate:"required" jsonschema_enum:"prompt_injection,business_logic,auth_bypass,recon,general"`
	Name        string `json:"name" validate:"required"`
	Goal        string `json:"goal" validate:"required"`
	Hypothesis  string `json:"hypothesis,omitempty"`
	Scope       any    `json:"scope,omitempty"`
}

// SetMissionContextArgs is set_mission_context's input.
type SetMissionContextArgs struct {
	MissionID string `json:"mission_id" validate:"required"`
}

// GetMissionContextArgs is get_mission_context's input.
type GetMissionContextArgs struct {
	MissionID string `json:"mission_id,omitempty" jsonschema_description:"Defaults to the connection's current mission"`
}

// CompleteMissionArgs is complete_mission's input.
type CompleteMissionArgs struct {
	MissionID string `json:"mission_id" validate:"required"`
}

// DeleteMissionArgs is delete_mission's input.
type DeleteMissionArgs struct {
	MissionID string `json:"mission_id" validate:"required"`
}

// RecordActionArgs is record_action's input.
type RecordActionArgs struct {
	MissionID          string `json:"mission_id" validate:"required"`
	ActionType         string `json:"action_type" validate:"required" jsonschema_enum:"payload_test,recon,exploit,analysis"`
	Technique          string `json:"technique" validate:"required"`
	Payload            string `json:"payload,omitempty"`
	Result             string `json:"result,omitempty"`
	Success            any    `json:"success,omitempty"`
	Learning           string `json:"learning,omitempty"`
	LinkRecentRequests int    `json:"link_recent_requests,omitempty"`
}

// FindSimilarTechniquesArgs is find_similar_techniques's input.
type FindSimilarTechniquesArgs struct {
	Technique   string  `json:"technique" validate:"required"`
	MissionID   string  `json:"mission_id,omitempty"`
	SuccessOnly any     `json:"success_only,omitempty"`
	Theta       float64 `json:"theta,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

// SearchTechniquesArgs is search_techniques's input.
type SearchTechniquesArgs struct {
	SuccessOnly any `json:"success_only,omitempty"`
	MinUsage    int `json:"min_usage,omitempty"`
	Limit       int `json:"limit,omitempty"`
}

// GetTechniqueStatsArgs is get_technique_stats's input.
type GetTechniqueStatsArgs struct {
	Technique string `json:"technique" validate:"required"`
}

// AddToLibraryArgs is add_to_library's input.
type AddToLibraryArgs struct {
	Category string `json:"category" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	MetaData any    `json:"meta_data,omitempty"`
}

// SearchLibraryArgs is search_library's input.
type SearchLibraryArgs struct {
	Query    string  `json:"query" validate:"required"`
	Category string  `json:"category,omitempty"`
	Theta    float64 `json:"theta,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// GetLibraryStatsArgs is get_library_stats's input.
type GetLibraryStatsArgs struct {
	RecentLimit int `json:"recent_limit,omitempty"`
}

// FindSimilarActionsArgs is find_similar_actions's input, per spec §4.I.
type FindSimilarActionsArgs struct {
	Query       string  `json:"query" validate:"required"`
	MissionID   string  `json:"mission_id,omitempty"`
	SuccessOnly any     `json:"success_only,omitempty"`
	Theta       float64 `json:"theta,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

// FindSuccessfulPatternsByTechniqueArgs is find_successful_patterns_by_technique's input.
type FindSuccessfulPatternsByTechniqueArgs struct {
	Technique string `json:"technique" validate:"required"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchTechniqueLibraryArgs is search_technique_library's input.
type SearchTechniqueLibraryArgs struct {
	Query    string  `json:"query" validate:"required"`
	Category string  `json:"category,omitempty"`
	Theta    float64 `json:"theta,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// AddActionEmbeddingsArgs is add_action_embeddings's input.
type AddActionEmbeddingsArgs struct {
	ActionID  string `json:"action_id" validate:"required"`
	Technique string `json:"technique" validate:"required"`
	Payload   string `json:"payload,omitempty"`
	Result    string `json:"result,omitempty"`
}

// AddTechniqueEmbeddingArgs is add_technique_embedding's input.
type AddTechniqueEmbeddingArgs struct {
	TechniqueID string `json:"technique_id" validate:"required"`
	Content     string `json:"content" validate:"required"`
}
