package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/cookiesession"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/httpclient"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	s := sqlstore.New(dsn, 1, 0, 5*time.Second)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type stubExecutor struct {
	result *httpclient.Result
	err    error
	lastReq httpclient.Request
}

func (s *stubExecutor) Execute(ctx context.Context, opts httpclient.Options, req httpclient.Request) (*httpclient.Result, error) {
	s.lastReq = req
	return s.result, s.err
}

type stubCookies struct {
	responses map[string]cookiesession.Response
}

func (s *stubCookies) Read(name string) cookiesession.Response {
	return s.responses[name]
}

func TestHTTPToolService_MergesCookiesWithWarningOnOverlap(t *testing.T) {
	exec := &stubExecutor{result: &httpclient.Result{StatusCode: 200, Headers: map[string]string{}, Cookies: map[string]string{}, Body: []byte("ok")}}
	cookies := &stubCookies{responses: map[string]cookiesession.Response{
		"admin": {Cookies: map[string]string{"session_id": "fromprofile", "theme": "dark"}},
	}}
	svc := NewHTTPToolService(HTTPToolConfig{TracingHeaderPrefix: "hiro"}, exec, cookies, nil, nil, nil)

	_, err := svc.Execute(context.Background(), HTTPRequestParams{
		URL: "https://example.com/", Method: "GET", CookieProfile: "admin",
		Cookies: map[string]string{"session_id": "fromuser"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.lastReq.Cookies["session_id"] != "fromuser" {
		t.Fatalf("expected user cookie to win, got %#v", exec.lastReq.Cookies)
	}
	if exec.lastReq.Cookies["theme"] != "dark" {
		t.Fatalf("expected profile cookie to survive, got %#v", exec.lastReq.Cookies)
	}
}

func TestHTTPToolService_UnconfiguredCookieProfileFails(t *testing.T) {
	exec := &stubExecutor{result: &httpclient.Result{}}
	svc := NewHTTPToolService(HTTPToolConfig{}, exec, nil, nil, nil, nil)

	_, err := svc.Execute(context.Background(), HTTPRequestParams{URL: "https://example.com/", Method: "GET", CookieProfile: "admin"})
	if err == nil || !strings.Contains(err.Error(), "Cookie profiles not configured") {
		t.Fatalf("expected 'Cookie profiles not configured', got %v", err)
	}
}

func TestHTTPToolService_CookieProfileErrorIsWrapped(t *testing.T) {
	exec := &stubExecutor{result: &httpclient.Result{}}
	cookies := &stubCookies{responses: map[string]cookiesession.Response{
		"broken": {Error: "insecure permissions"},
	}}
	svc := NewHTTPToolService(HTTPToolConfig{}, exec, cookies, nil, nil, nil)

	_, err := svc.Execute(context.Background(), HTTPRequestParams{URL: "https://example.com/", Method: "GET", CookieProfile: "broken"})
	if err == nil || !strings.Contains(err.Error(), "Cookie profile 'broken' failed: insecure permissions") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPToolService_TracingHeadersAlwaysPresent(t *testing.T) {
	exec := &stubExecutor{result: &httpclient.Result{Headers: map[string]string{}, Cookies: map[string]string{}}}
	svc := NewHTTPToolService(HTTPToolConfig{TracingHeaderPrefix: "hiro"}, exec, nil, nil, nil, nil)

	_, err := svc.Execute(context.Background(), HTTPRequestParams{URL: "https://example.com/", Method: "GET",
		Headers: map[string]string{"User-Agent": "custom-agent"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.lastReq.Headers["User-Agent"] != "custom-agent" {
		t.Fatalf("expected user header to win over tracing default, got %#v", exec.lastReq.Headers)
	}
	if _, ok := exec.lastReq.Headers["X-Mcp-Source"]; !ok {
		t.Fatalf("expected X-Mcp-Source tracing header, got %#v", exec.lastReq.Headers)
	}
}

func TestHTTPToolService_TimeoutErrorClassified(t *testing.T) {
	exec := &stubExecutor{err: &httpclient.TimeoutError{TimeoutSeconds: 5}}
	svc := NewHTTPToolService(HTTPToolConfig{}, exec, nil, nil, nil, nil)

	_, err := svc.Execute(context.Background(), HTTPRequestParams{URL: "https://example.com/", Method: "GET"})
	if err == nil || !strings.Contains(err.Error(), "Request timed out after 5s") {
		t.Fatalf("expected timeout message, got %v", err)
	}
}

func TestFilterSensitive_RedactsCaseInsensitively(t *testing.T) {
	headers := map[string]string{"Authorization": "secret", "Accept": "text/plain"}
	filtered := filterSensitive(headers, []string{"authorization"})
	if filtered["Authorization"] != "[FILTERED]" {
		t.Fatalf("expected Authorization filtered, got %#v", filtered)
	}
	if filtered["Accept"] != "text/plain" {
		t.Fatalf("expected Accept untouched, got %#v", filtered)
	}
}

func TestHTTPToolService_ResponseBodyTruncated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := sqlstore.NewLazyTargetRepo(s)
	requests := sqlstore.NewLazyHttpRequestRepo(s)

	exec := &stubExecutor{result: &httpclient.Result{StatusCode: 200, Headers: map[string]string{}, Cookies: map[string]string{}, Body: []byte("0123456789")}}
	svc := NewHTTPToolService(HTTPToolConfig{LoggingEnabled: true, MaxResponseBodySize: 4}, exec, nil, targets, requests, nil)

	out, err := svc.Execute(ctx, HTTPRequestParams{URL: "https://example.com/path", Method: "GET"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "0123456789" {
		t.Fatalf("expected untruncated text in the live response, got %q", out.Text)
	}

	rows, err := requests.GetByID(ctx, firstRequestID(t, ctx, s))
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !strings.HasSuffix(rows.ResponseBody, "... [TRUNCATED]") {
		t.Fatalf("expected truncated suffix in the logged row, got %q", rows.ResponseBody)
	}
}

func firstRequestID(t *testing.T, ctx context.Context, s *sqlstore.Store) string {
	t.Helper()
	db, err := s.DB(ctx)
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	var id string
	if err := db.QueryRowContext(ctx, `SELECT id FROM http_requests ORDER BY created_at DESC LIMIT 1`).Scan(&id); err != nil {
		t.Fatalf("query id: %v", err)
	}
	return id
}
