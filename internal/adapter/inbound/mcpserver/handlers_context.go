package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/domain/targetcontext"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/service"
)

// targetContextResult is get_target_context's response shape: the
// resolved version plus, when requested, the target's prior versions.
type targetContextResult struct {
	Context *targetcontext.TargetContext  `json:"context"`
	History []targetcontext.TargetContext `json:"history,omitempty"`
}

func (r *Registry) registerContextTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_target_context",
		Description: "Fetch a target's current (or a specific) context version, optionally with its version history.",
	}, wrap(r, "get_target_context", r.getTargetContext))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_target_context",
		Description: "Create a new context version for a target, appending to or replacing the prior user/agent notes.",
	}, wrap(r, "update_target_context", r.updateTargetContext))
}

func (r *Registry) getTargetContext(ctx context.Context, _ *mcp.CallToolRequest, args GetTargetContextArgs) (any, error) {
	if err := validateStruct("get_target_context", args); err != nil {
		return nil, err
	}

	var fields []toolerr.FieldError
	includeHistory := coerceBool("include_history", args.IncludeHistory, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("get_target_context", fields)
	}

	var (
		c   *targetcontext.TargetContext
		err error
	)
	switch {
	case args.VersionID != "":
		c, err = r.d.ContextVersion.GetVersion(ctx, args.VersionID)
	case args.Version != 0:
		c, err = r.d.ContextVersion.GetVersionByNumber(ctx, args.TargetID, args.Version)
	default:
		c, err = r.d.ContextVersion.GetCurrent(ctx, args.TargetID)
	}
	if err != nil {
		return nil, err
	}

	out := targetContextResult{Context: c}
	if includeHistory {
		history, err := r.d.ContextVersion.ListVersions(ctx, args.TargetID, 50, 0)
		if err != nil {
			return nil, err
		}
		out.History = history
	}
	return out, nil
}

func (r *Registry) updateTargetContext(ctx context.Context, _ *mcp.CallToolRequest, args UpdateTargetContextArgs) (any, error) {
	if err := validateStruct("update_target_context", args); err != nil {
		return nil, err
	}

	var fields []toolerr.FieldError
	appendMode := coerceBool("append_mode", args.AppendMode, false, &fields)
	isMajor := coerceBool("is_major_version", args.IsMajorVersion, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("update_target_context", fields)
	}

	userContext := args.UserContext
	agentContext := args.AgentContext
	if appendMode {
		if current, err := r.d.ContextVersion.GetCurrent(ctx, args.TargetID); err == nil {
			if args.UserContext != "" {
				userContext = current.UserContext + "\n" + args.UserContext
			} else {
				userContext = current.UserContext
			}
			if args.AgentContext != "" {
				agentContext = current.AgentContext + "\n" + args.AgentContext
			} else {
				agentContext = current.AgentContext
			}
		}
	}

	createdBy := args.CreatedBy
	if createdBy == "" {
		createdBy = "agent"
	}

	c, err := r.d.ContextVersion.CreateVersion(ctx, service.CreateVersionParams{
		TargetID:       args.TargetID,
		UserContext:    userContext,
		AgentContext:   agentContext,
		CreatedBy:      createdBy,
		ChangeType:     targetcontext.ChangeAgentUpdate,
		ChangeSummary:  args.ChangeSummary,
		IsMajorVersion: isMajor,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
