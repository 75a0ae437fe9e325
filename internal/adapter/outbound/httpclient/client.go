// Package httpclient builds the outbound http.Client used by the
// HTTP Tool to execute one arbitrary-method fetch-and-capture request,
// including outcomes that carry no server response (timeout,
// connection refusal) so the tool can still log an ErrorMessage.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Options configures one outbound request.
type Options struct {
	Timeout         time.Duration
	VerifySSL       bool
	ProxyURL        string
	FollowRedirects bool
}

// Request is everything the HTTP Tool has already merged and is ready
// to send.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]string
	Cookies map[string]string
	Body    []byte
	IsJSON  bool
	Auth    *BasicAuth
}

// BasicAuth carries an optional username/password pair.
type BasicAuth struct {
	Username string
	Password string
}

// Result captures everything the caller needs to log and return.
type Result struct {
	StatusCode int
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
	ElapsedMS  int64
	Encoding   string
}

// Client executes a single outbound request per Options/Request pair.
type Client struct{}

// New builds a Client. Construction is cheap; all per-request
// tuning (timeout, TLS verification, proxy) is applied fresh on
// Execute so concurrent calls with different profiles never share
// state.
func New() *Client { return &Client{} }

// Execute issues one HTTP request and returns either a Result or a
// typed error (*TimeoutError, *ConnectError, or a generic error) the
// caller patches into the HttpRequest row's ErrorMessage.
func (c *Client) Execute(ctx context.Context, opts Options, req Request) (*Result, error) {
	transport := &http.Transport{
		Proxy: proxyFunc(opts.ProxyURL),
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !opts.VerifySSL, //nolint:gosec // explicit opt-out for intercepting proxies
			MinVersion:         tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{Transport: transport, Timeout: opts.Timeout}
	if !opts.FollowRedirects {
		httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	start := time.Now()
	resp, err := httpClient.Do(httpReq)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{TimeoutSeconds: opts.Timeout.Seconds()}
		}
		// A timed-out *net.OpError is reported as a TimeoutError and
		// any other OpError (a refused dial, for example) as a
		// ConnectError; remaining errors fall through to the generic
		// net.Error timeout check below.
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			if opErr.Timeout() {
				return nil, &TimeoutError{TimeoutSeconds: opts.Timeout.Seconds()}
			}
			return nil, &ConnectError{Detail: opErr.Err.Error()}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &TimeoutError{TimeoutSeconds: opts.Timeout.Seconds()}
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	cookies := map[string]string{}
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Cookies:    cookies,
		Body:       body,
		ElapsedMS:  elapsed,
		Encoding:   resp.Header.Get("Content-Encoding"),
	}, nil
}

func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.IsJSON && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}
	return httpReq, nil
}

func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL == "" {
		return nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil
	}
	return http.ProxyURL(parsed)
}

// TimeoutError reports that a request did not complete within the
// configured timeout.
type TimeoutError struct {
	TimeoutSeconds float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Request timed out after %gs", e.TimeoutSeconds)
}

// ConnectError reports that the TCP connection itself failed.
type ConnectError struct {
	Detail string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("Connection failed: %s", e.Detail)
}
