// Package service composes the repositories, outbound adapters, and
// capability interfaces into the operations the MCP tool registry
// calls directly: one outbound HTTP exchange, target context
// versioning, the mission/action surface, and vector recall.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/cookiesession"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/httpclient"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/httprequest"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

const truncationSuffix = "... [TRUNCATED]"

// HTTPToolConfig carries the subset of config.HTTPToolConfig the
// service needs, kept decoupled from the config package so this
// service can be unit tested without a viper dependency.
type HTTPToolConfig struct {
	Timeout             time.Duration
	VerifySSL           bool
	ProxyURL            string
	MaxRequestBodySize  int
	MaxResponseBodySize int
	SensitiveHeaders    []string
	LoggingEnabled      bool
	TracingHeaderPrefix string
}

// HTTPRequestParams is the validated input to Execute, already coerced
// by internal/domain/validation.
type HTTPRequestParams struct {
	URL             string
	Method          string
	Headers         map[string]string
	Params          map[string]string
	Cookies         map[string]string
	Data            string
	CookieProfile   string
	FollowRedirects bool
	Auth            *httpclient.BasicAuth
	MissionID       *string
}

// AuditRecord is the "request" sub-record in the tool output: the
// audit trail of what was actually sent, including values the caller
// did not itself supply.
type AuditRecord struct {
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	HeadersSent   map[string]string `json:"headers_sent"`
	HeadersUser   map[string]string `json:"headers_user"`
	Cookies       map[string]string `json:"cookies"`
	CookieProfile string            `json:"cookie_profile,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
	Data          string            `json:"data,omitempty"`
	ProxyUsed     string            `json:"proxy_used,omitempty"`
}

// ExecuteResult is the full structured output of the http_request tool.
type ExecuteResult struct {
	StatusCode int             `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	URL        string          `json:"url"`
	Method     string          `json:"method"`
	Cookies    map[string]string `json:"cookies"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	Encoding   string          `json:"encoding,omitempty"`
	Text       string          `json:"text,omitempty"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Request    AuditRecord     `json:"request"`
}

// httpExecutor is the outbound-call seam; satisfied by
// *httpclient.Client in production and stubbed in tests.
type httpExecutor interface {
	Execute(ctx context.Context, opts httpclient.Options, req httpclient.Request) (*httpclient.Result, error)
}

// cookieReader is the cookie-session seam; satisfied by
// *cookiesession.Provider.
type cookieReader interface {
	Read(name string) cookiesession.Response
}

// HTTPToolService implements spec §4.F: resolve cookies, merge
// headers, log pre-request, execute, log post-request, and return the
// full audit record. All persistence failures are warnings; apart from
// a cookie profile that cannot be loaded, only the outbound network
// call itself can fail the tool.
type HTTPToolService struct {
	cfg      HTTPToolConfig
	client   httpExecutor
	cookies  cookieReader
	targets  *sqlstore.TargetRepo
	requests *sqlstore.HttpRequestRepo
	logger   *slog.Logger
}

// NewHTTPToolService wires the HTTP tool. cookies may be nil when
// cookie sessions are disabled; targets/requests may be nil when
// database logging is disabled, in which case cfg.LoggingEnabled
// should also be false.
func NewHTTPToolService(cfg HTTPToolConfig, client httpExecutor, cookies cookieReader,
	targets *sqlstore.TargetRepo, requests *sqlstore.HttpRequestRepo, logger *slog.Logger,
) *HTTPToolService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPToolService{cfg: cfg, client: client, cookies: cookies, targets: targets, requests: requests, logger: logger}
}

// Execute runs one outbound HTTP exchange per spec §4.F.
func (s *HTTPToolService) Execute(ctx context.Context, params HTTPRequestParams) (*ExecuteResult, error) {
	cookies, err := s.resolveCookies(ctx, params)
	if err != nil {
		return nil, err
	}

	headers := s.mergeHeaders(params.Headers)

	isJSON := looksLikeJSON(params.Data)

	var requestID string
	if s.cfg.LoggingEnabled && s.targets != nil && s.requests != nil {
		requestID = s.logPreRequest(ctx, params, headers, cookies)
	}

	opts := httpclient.Options{
		Timeout:         s.cfg.Timeout,
		VerifySSL:       s.cfg.VerifySSL,
		ProxyURL:        s.cfg.ProxyURL,
		FollowRedirects: params.FollowRedirects,
	}
	req := httpclient.Request{
		Method:  strings.ToUpper(params.Method),
		URL:     params.URL,
		Headers: headers,
		Params:  params.Params,
		Cookies: cookies,
		Body:    []byte(params.Data),
		IsJSON:  isJSON,
		Auth:    params.Auth,
	}

	result, execErr := s.client.Execute(ctx, opts, req)
	if execErr != nil {
		if requestID != "" {
			s.logPostRequestError(ctx, requestID, execErr)
		}
		return nil, classifyHTTPError(execErr)
	}

	if requestID != "" {
		s.logPostRequestSuccess(ctx, requestID, result)
	}

	return s.buildOutput(params, headers, cookies, result), nil
}

// resolveCookies implements the cookie merge order: profile first,
// user cookies overlay with a warning on key collision.
func (s *HTTPToolService) resolveCookies(ctx context.Context, params HTTPRequestParams) (map[string]string, error) {
	merged := map[string]string{}

	if params.CookieProfile != "" {
		if s.cookies == nil {
			return nil, &toolerr.ToolError{Tool: "http_request", Message: "Cookie profiles not configured"}
		}
		resp := s.cookies.Read(params.CookieProfile)
		if resp.Error != "" {
			return nil, &toolerr.ToolError{
				Tool:    "http_request",
				Message: fmt.Sprintf("Cookie profile '%s' failed: %s", params.CookieProfile, resp.Error),
			}
		}
		for k, v := range resp.Cookies {
			merged[k] = v
		}
	}

	var overwritten []string
	for k, v := range params.Cookies {
		if _, exists := merged[k]; exists {
			overwritten = append(overwritten, k)
		}
		merged[k] = v
	}
	if len(overwritten) > 0 {
		sort.Strings(overwritten)
		s.logger.WarnContext(ctx, "cookie profile keys overwritten by user cookies",
			"cookie_profile", params.CookieProfile, "keys", overwritten)
	}

	return merged, nil
}

// mergeHeaders applies the header merge order: configured tracing
// headers, then user headers (user headers win on collision).
func (s *HTTPToolService) mergeHeaders(userHeaders map[string]string) map[string]string {
	merged := map[string]string{
		"User-Agent":     fmt.Sprintf("%s/mcp-tool", s.cfg.TracingHeaderPrefix),
		"X-Mcp-Source":   s.cfg.TracingHeaderPrefix,
	}
	for k, v := range userHeaders {
		merged[k] = v
	}
	return merged
}

func looksLikeJSON(data string) bool {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return false
	}
	return json.Valid([]byte(trimmed))
}

// logPreRequest upserts the target, inserts the HttpRequest row with
// filtered headers, and idempotently links the two. Any failure is
// logged as a warning; the caller proceeds with requestID == "".
func (s *HTTPToolService) logPreRequest(ctx context.Context, params HTTPRequestParams, headers, cookies map[string]string) string {
	t, err := s.targets.GetOrCreateFromURL(ctx, params.URL)
	if err != nil {
		s.logger.WarnContext(ctx, "http_request: failed to upsert target", "error", err)
		return ""
	}

	body := params.Data
	if s.cfg.MaxRequestBodySize > 0 && len(body) > s.cfg.MaxRequestBodySize {
		body = body[:s.cfg.MaxRequestBodySize] + truncationSuffix
	}

	req := httprequest.HttpRequest{
		MissionID:   params.MissionID,
		Method:      strings.ToUpper(params.Method),
		URL:         params.URL,
		QueryParams: params.Params,
		Headers:     filterSensitive(headers, s.cfg.SensitiveHeaders),
		Cookies:     filterSensitive(cookies, s.cfg.SensitiveHeaders),
		RequestBody: body,
	}
	id, err := s.requests.Create(ctx, &req)
	if err != nil {
		s.logger.WarnContext(ctx, "http_request: failed to log request", "error", err)
		return ""
	}

	if err := s.requests.LinkToTarget(ctx, id, t.ID); err != nil {
		s.logger.WarnContext(ctx, "http_request: failed to link request to target", "error", err)
	}

	return id
}

func (s *HTTPToolService) logPostRequestSuccess(ctx context.Context, requestID string, result *httpclient.Result) {
	body := string(result.Body)
	truncated := body
	if s.cfg.MaxResponseBodySize > 0 && len(body) > s.cfg.MaxResponseBodySize {
		truncated = body[:s.cfg.MaxResponseBodySize] + truncationSuffix
	}
	status := result.StatusCode
	size := len(result.Body)
	elapsed := result.ElapsedMS
	patch := sqlstore.UpdatePatch{
		StatusCode:      &status,
		ResponseHeaders: filterSensitive(result.Headers, s.cfg.SensitiveHeaders),
		ResponseBody:    &truncated,
		ResponseSize:    &size,
		ElapsedMS:       &elapsed,
	}
	if err := s.requests.Update(ctx, requestID, patch); err != nil {
		s.logger.WarnContext(ctx, "http_request: failed to patch response", "error", err)
	}
}

func (s *HTTPToolService) logPostRequestError(ctx context.Context, requestID string, execErr error) {
	msg := execErr.Error()
	if errors.Is(ctx.Err(), context.Canceled) {
		msg = "cancelled"
	}
	// The patch must still land when the tool call itself was cancelled.
	if err := s.requests.Update(context.WithoutCancel(ctx), requestID, sqlstore.UpdatePatch{ErrorMessage: &msg}); err != nil {
		s.logger.WarnContext(ctx, "http_request: failed to patch error", "error", err)
	}
}

func (s *HTTPToolService) buildOutput(params HTTPRequestParams, headersSent, cookies map[string]string, result *httpclient.Result) *ExecuteResult {
	body := string(result.Body)
	out := &ExecuteResult{
		StatusCode: result.StatusCode,
		Headers:    result.Headers,
		URL:        params.URL,
		Method:     strings.ToUpper(params.Method),
		Cookies:    result.Cookies,
		ElapsedMS:  result.ElapsedMS,
		Encoding:   result.Encoding,
		Text:       body,
		Request: AuditRecord{
			URL:           params.URL,
			Method:        strings.ToUpper(params.Method),
			HeadersSent:   headersSent,
			HeadersUser:   params.Headers,
			Cookies:       cookies,
			CookieProfile: params.CookieProfile,
			Params:        params.Params,
			Data:          params.Data,
			ProxyUsed:     s.cfg.ProxyURL,
		},
	}
	if json.Valid(result.Body) {
		out.JSON = json.RawMessage(result.Body)
	}
	return out
}

func filterSensitive(headers map[string]string, sensitive []string) map[string]string {
	if len(sensitive) == 0 || headers == nil {
		return headers
	}
	blocked := make(map[string]struct{}, len(sensitive))
	for _, h := range sensitive {
		blocked[strings.ToLower(h)] = struct{}{}
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := blocked[strings.ToLower(k)]; ok {
			out[k] = "[FILTERED]"
			continue
		}
		out[k] = v
	}
	return out
}

func classifyHTTPError(err error) error {
	var timeoutErr *httpclient.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &toolerr.ToolError{Tool: "http_request", Message: timeoutErr.Error(), Err: err}
	}
	var connectErr *httpclient.ConnectError
	if errors.As(err, &connectErr) {
		return &toolerr.ToolError{Tool: "http_request", Message: connectErr.Error(), Err: err}
	}
	return &toolerr.ToolError{Tool: "http_request", Message: err.Error(), Err: err}
}
