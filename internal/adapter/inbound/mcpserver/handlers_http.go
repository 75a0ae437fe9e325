package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/httpclient"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/service"
)

func (r *Registry) registerHTTPTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "http_request",
		Description: "Issue an outbound HTTP request against a target and log the exchange for later recall.",
	}, wrap(r, "http_request", r.httpRequest))
}

func (r *Registry) httpRequest(ctx context.Context, _ *mcp.CallToolRequest, args HTTPRequestArgs) (any, error) {
	if err := validateStruct("http_request", args); err != nil {
		return nil, err
	}
	if args.Method == "" {
		args.Method = "GET"
	}

	var fields []toolerr.FieldError
	followRedirects := coerceBool("follow_redirects", args.FollowRedirects, true, &fields)
	headers := coerceMap("headers", args.Headers, &fields)
	params := coerceMap("params", args.Params, &fields)
	cookies := coerceMap("cookies", args.Cookies, &fields)

	var auth *httpclient.BasicAuth
	if args.Auth != nil {
		authMap := coerceMap("auth", args.Auth, &fields)
		if authMap["username"] != "" || authMap["password"] != "" {
			auth = &httpclient.BasicAuth{Username: authMap["username"], Password: authMap["password"]}
		}
	}
	if len(fields) > 0 {
		return nil, validationErr("http_request", fields)
	}

	var missionID *string
	if args.MissionID != "" {
		missionID = &args.MissionID
	}

	result, err := r.d.HTTPTool.Execute(ctx, service.HTTPRequestParams{
		URL:             args.URL,
		Method:          args.Method,
		Headers:         headers,
		Params:          params,
		Cookies:         cookies,
		Data:            args.Data,
		CookieProfile:   args.CookieProfile,
		FollowRedirects: followRedirects,
		Auth:            auth,
		MissionID:       missionID,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
