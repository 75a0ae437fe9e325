package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/domain/target"
	"github.com/kwkeefer/hiro/internal/service"
)

func (r *Registry) registerTargetTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_target",
		Description: "Register a target endpoint directly, before any request has been issued against it.",
	}, wrap(r, "create_target", r.createTarget))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_target_status",
		Description: "Update a target's lifecycle status, risk level, and/or descriptive title.",
	}, wrap(r, "update_target_status", r.updateTargetStatus))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_target_summary",
		Description: "Fetch a target plus its aggregated request/mission/action counts.",
	}, wrap(r, "get_target_summary", r.getTargetSummary))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_targets",
		Description: "Filter targets by status, risk level, protocol, and a substring match on host or title.",
	}, wrap(r, "search_targets", r.searchTargets))
}

func (r *Registry) createTarget(ctx context.Context, _ *mcp.CallToolRequest, args CreateTargetArgs) (any, error) {
	if err := validateStruct("create_target", args); err != nil {
		return nil, err
	}
	t, err := r.d.Target.CreateTarget(ctx, service.CreateTargetParams{
		Host:      args.Host,
		Port:      args.Port,
		Protocol:  args.Protocol,
		Title:     args.Title,
		Status:    target.Status(args.Status),
		RiskLevel: target.RiskLevel(args.RiskLevel),
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) updateTargetStatus(ctx context.Context, _ *mcp.CallToolRequest, args UpdateTargetStatusArgs) (any, error) {
	if err := validateStruct("update_target_status", args); err != nil {
		return nil, err
	}
	var status *target.Status
	if args.Status != "" {
		s := target.Status(args.Status)
		status = &s
	}
	var risk *target.RiskLevel
	if args.RiskLevel != "" {
		rl := target.RiskLevel(args.RiskLevel)
		risk = &rl
	}
	t, err := r.d.Target.UpdateTargetStatus(ctx, service.UpdateTargetStatusParams{
		TargetID:  args.TargetID,
		Status:    status,
		RiskLevel: risk,
		Title:     args.Title,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) getTargetSummary(ctx context.Context, _ *mcp.CallToolRequest, args GetTargetSummaryArgs) (any, error) {
	if err := validateStruct("get_target_summary", args); err != nil {
		return nil, err
	}
	s, err := r.d.Target.GetTargetSummary(ctx, args.TargetID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) searchTargets(ctx context.Context, _ *mcp.CallToolRequest, args SearchTargetsArgs) (any, error) {
	results, err := r.d.Target.SearchTargets(ctx, target.SearchParams{
		Status:      target.Status(args.Status),
		RiskLevel:   target.RiskLevel(args.RiskLevel),
		Protocol:    args.Protocol,
		HostOrTitle: args.Query,
		Limit:       args.Limit,
		Offset:      args.Offset,
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
