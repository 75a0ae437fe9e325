package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/service"
)

func (r *Registry) registerMissionTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_mission",
		Description: "Start a new testing campaign against a target with a goal and hypothesis.",
	}, wrap(r, "create_mission", r.createMission))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_mission_context",
		Description: "Mark a mission as the current mission for this connection.",
	}, wrap(r, "set_mission_context", r.setMissionContext))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_mission_context",
		Description: "Summarize a mission's progress: total/successful actions, success rate, unique techniques, recent actions.",
	}, wrap(r, "get_mission_context", r.getMissionContext))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_action",
		Description: "Record one technique attempt against a mission and link its most recent HTTP requests.",
	}, wrap(r, "record_action", r.recordAction))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_mission",
		Description: "Mark a mission completed.",
	}, wrap(r, "complete_mission", r.completeMission))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_mission",
		Description: "Delete a mission and its recorded actions.",
	}, wrap(r, "delete_mission", r.deleteMission))
}

func (r *Registry) createMission(ctx context.Context, _ *mcp.CallToolRequest, args CreateMissionArgs) (any, error) {
	if err := validateStruct("create_mission", args); err != nil {
		return nil, err
	}
	var fields []toolerr.FieldError
	scope := coerceMap("scope", args.Scope, &fields)
	if len(fields) > 0 {
		return nil, validationErr("create_mission", fields)
	}

	m, err := r.d.Mission.CreateMission(ctx, service.CreateMissionParams{
		TargetID:   args.TargetID,
		Type:       missiondomain.Type(args.MissionType),
		Name:       args.Name,
		Goal:       args.Goal,
		Hypothesis: args.Hypothesis,
		Scope:      scope,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Registry) setMissionContext(ctx context.Context, req *mcp.CallToolRequest, args SetMissionContextArgs) (any, error) {
	if err := validateStruct("set_mission_context", args); err != nil {
		return nil, err
	}
	if err := r.d.Mission.SetMissionContext(ctx, connectionID(req), args.MissionID); err != nil {
		return nil, err
	}
	return map[string]string{"mission_id": args.MissionID}, nil
}

func (r *Registry) getMissionContext(ctx context.Context, req *mcp.CallToolRequest, args GetMissionContextArgs) (any, error) {
	s, err := r.d.Mission.GetMissionContext(ctx, connectionID(req), args.MissionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) recordAction(ctx context.Context, _ *mcp.CallToolRequest, args RecordActionArgs) (any, error) {
	if err := validateStruct("record_action", args); err != nil {
		return nil, err
	}
	var fields []toolerr.FieldError
	success := coerceBool("success", args.Success, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("record_action", fields)
	}

	a, err := r.d.Mission.RecordAction(ctx, service.RecordActionParams{
		MissionID:          args.MissionID,
		ActionType:         missiondomain.ActionType(args.ActionType),
		Technique:          args.Technique,
		Payload:            args.Payload,
		Result:             args.Result,
		Success:            success,
		Learning:           args.Learning,
		LinkRecentRequests: args.LinkRecentRequests,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Registry) completeMission(ctx context.Context, req *mcp.CallToolRequest, args CompleteMissionArgs) (any, error) {
	if err := validateStruct("complete_mission", args); err != nil {
		return nil, err
	}
	if err := r.d.Mission.CompleteMission(ctx, connectionID(req), args.MissionID); err != nil {
		return nil, err
	}
	return map[string]string{"mission_id": args.MissionID, "status": "completed"}, nil
}

func (r *Registry) deleteMission(ctx context.Context, req *mcp.CallToolRequest, args DeleteMissionArgs) (any, error) {
	if err := validateStruct("delete_mission", args); err != nil {
		return nil, err
	}
	if err := r.d.Mission.DeleteMission(ctx, connectionID(req), args.MissionID); err != nil {
		return nil, err
	}
	return map[string]string{"mission_id": args.MissionID, "status": "deleted"}, nil
}
