package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kwkeefer/hiro/internal/domain/httprequest"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// HttpRequestRepo is the HttpRequest aggregate repository.
type HttpRequestRepo struct {
	q     Querier
	store *Store
}

func NewHttpRequestRepo(q Querier) *HttpRequestRepo { return &HttpRequestRepo{q: q} }

func NewLazyHttpRequestRepo(store *Store) *HttpRequestRepo { return &HttpRequestRepo{store: store} }

func (r *HttpRequestRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// Create inserts a new HttpRequest row with response fields null and
// returns the new row's id.
func (r *HttpRequestRepo) Create(ctx context.Context, req *httprequest.HttpRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	u, _ := url.Parse(req.URL)
	if req.Host == "" && u != nil {
		req.Host = u.Hostname()
	}
	if req.Path == "" && u != nil {
		req.Path = u.Path
	}

	err := r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO http_requests (id, mission_id, method, url, host, path, query_params, headers,
				cookies, request_body, status_code, response_headers, response_body, response_size,
				elapsed_ms, error_message, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, NULL, ?)`,
			req.ID, req.MissionID, req.Method, req.URL, req.Host, req.Path,
			encodeMap(req.QueryParams), encodeMap(req.Headers), encodeMap(req.Cookies), req.RequestBody,
			encodeMap(nil), "", 0, 0, req.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "CreateHttpRequest", Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return req.ID, nil
}

// UpdatePatch is the set of response fields Update may patch; zero
// values mean "leave unchanged" except where noted.
type UpdatePatch struct {
	StatusCode      *int
	ResponseHeaders map[string]string
	ResponseBody    *string
	ResponseSize    *int
	ElapsedMS       *int64
	ErrorMessage    *string
}

// Update patches response fields on an existing HttpRequest row. A
// zero-value patch is a no-op.
func (r *HttpRequestRepo) Update(ctx context.Context, id string, patch UpdatePatch) error {
	if patch.StatusCode == nil && patch.ResponseHeaders == nil && patch.ResponseBody == nil &&
		patch.ResponseSize == nil && patch.ElapsedMS == nil && patch.ErrorMessage == nil {
		return nil
	}
	return r.withQuerier(ctx, func(q Querier) error {
		var statusCode any
		if patch.StatusCode != nil {
			statusCode = *patch.StatusCode
		}
		var respBody string
		if patch.ResponseBody != nil {
			respBody = *patch.ResponseBody
		}
		var respSize int
		if patch.ResponseSize != nil {
			respSize = *patch.ResponseSize
		}
		var elapsed int64
		if patch.ElapsedMS != nil {
			elapsed = *patch.ElapsedMS
		}
		var errMsg any
		if patch.ErrorMessage != nil {
			errMsg = *patch.ErrorMessage
		}
		_, err := q.ExecContext(ctx, `
			UPDATE http_requests SET
				status_code = COALESCE(?, status_code),
				response_headers = CASE WHEN ? THEN ? ELSE response_headers END,
				response_body = CASE WHEN ? THEN ? ELSE response_body END,
				response_size = CASE WHEN ? THEN ? ELSE response_size END,
				elapsed_ms = CASE WHEN ? THEN ? ELSE elapsed_ms END,
				error_message = COALESCE(?, error_message)
			WHERE id = ?`,
			statusCode,
			patch.ResponseHeaders != nil, encodeMap(patch.ResponseHeaders),
			patch.ResponseBody != nil, respBody,
			patch.ResponseSize != nil, respSize,
			patch.ElapsedMS != nil, elapsed,
			errMsg, id)
		if err != nil {
			return &toolerr.StoreError{Op: "UpdateHttpRequest", Err: err}
		}
		return nil
	})
}

// LinkToTarget idempotently inserts a Target<->HttpRequest join row.
func (r *HttpRequestRepo) LinkToTarget(ctx context.Context, requestID, targetID string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO target_http_requests (target_id, request_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (target_id, request_id) DO NOTHING`,
			targetID, requestID, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "LinkRequestToTarget", Err: err}
		}
		return nil
	})
}

// CleanupOlderThan deletes requests created before now-days and
// returns the count deleted. Referenced rows (linked to a
// MissionAction) are deleted unconditionally via cascade, matching
// the source behavior.
func (r *HttpRequestRepo) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	var count int64
	err := r.withQuerier(ctx, func(q Querier) error {
		cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
		res, err := q.ExecContext(ctx, `DELETE FROM http_requests WHERE created_at < ?`, cutoff)
		if err != nil {
			return &toolerr.StoreError{Op: "CleanupOldRequests", Err: err}
		}
		count, err = res.RowsAffected()
		if err != nil {
			return &toolerr.StoreError{Op: "CleanupOldRequests", Err: err}
		}
		return nil
	})
	return count, err
}

// GetByID fetches an HttpRequest by id.
func (r *HttpRequestRepo) GetByID(ctx context.Context, id string) (*httprequest.HttpRequest, error) {
	var result *httprequest.HttpRequest
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, `
			SELECT id, mission_id, method, url, host, path, query_params, headers, cookies, request_body,
				status_code, response_headers, response_body, response_size, elapsed_ms, error_message, created_at
			FROM http_requests WHERE id = ?`, id)
		req, err := scanHttpRequest(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetHttpRequestByID", Err: err}
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MostRecentForMission returns up to limit HttpRequests for a mission,
// newest first — used by RecordAction's idempotent linking step.
func (r *HttpRequestRepo) MostRecentForMission(ctx context.Context, missionID string, limit int) ([]httprequest.HttpRequest, error) {
	var out []httprequest.HttpRequest
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT id, mission_id, method, url, host, path, query_params, headers, cookies, request_body,
				status_code, response_headers, response_body, response_size, elapsed_ms, error_message, created_at
			FROM http_requests WHERE mission_id = ? ORDER BY created_at DESC LIMIT ?`, missionID, limit)
		if err != nil {
			return &toolerr.StoreError{Op: "MostRecentForMission", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			req, err := scanHttpRequest(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "MostRecentForMission", Err: err}
			}
			out = append(out, *req)
		}
		return rows.Err()
	})
	return out, err
}

func scanHttpRequest(row scannable) (*httprequest.HttpRequest, error) {
	var req httprequest.HttpRequest
	var qp, headers, cookies, respHeaders, createdAt string
	if err := row.Scan(&req.ID, &req.MissionID, &req.Method, &req.URL, &req.Host, &req.Path,
		&qp, &headers, &cookies, &req.RequestBody, &req.StatusCode, &respHeaders, &req.ResponseBody,
		&req.ResponseSize, &req.ElapsedMS, &req.ErrorMessage, &createdAt); err != nil {
		return nil, err
	}
	req.QueryParams = decodeMap(qp)
	req.Headers = decodeMap(headers)
	req.Cookies = decodeMap(cookies)
	req.ResponseHeaders = decodeMap(respHeaders)
	req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &req, nil
}
