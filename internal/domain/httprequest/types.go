// Package httprequest holds the HttpRequest aggregate: a single
// outbound HTTP request/response pair issued by the http_request tool,
// persisted for audit and recall, plus its RequestTag annotations.
package httprequest

import "time"

// HttpRequest is a persisted outbound HTTP request/response pair.
// Exactly one of StatusCode or ErrorMessage is set once the request
// has terminated; both are nil between insert and completion.
type HttpRequest struct {
	ID              string
	MissionID       *string
	Method          string
	URL             string
	Host            string
	Path            string
	QueryParams     map[string]string
	Headers         map[string]string
	Cookies         map[string]string
	RequestBody     string
	StatusCode      *int
	ResponseHeaders map[string]string
	ResponseBody    string
	ResponseSize    int
	ElapsedMS       int64
	ErrorMessage    *string
	CreatedAt       time.Time
}

// Terminated reports whether the request has a final outcome recorded.
func (r *HttpRequest) Terminated() bool {
	return r.StatusCode != nil || r.ErrorMessage != nil
}

// Tag is a free-form annotation on an HttpRequest, unique per
// (request_id, tag).
type Tag struct {
	RequestID string
	Tag       string
	CreatedAt time.Time
}

// SearchParams filters HttpRequest history queries.
type SearchParams struct {
	TargetID  string
	MissionID string
	Method    string
	StatusMin int
	StatusMax int
	Tag       string
	Limit     int
	Offset    int
}
