package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

func (r *Registry) registerTechniqueTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_similar_techniques",
		Description: "Group past mission actions by technique and rank the groups by similarity to a query.",
	}, wrap(r, "find_similar_techniques", r.findSimilarTechniques))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_techniques",
		Description: "List technique usage statistics, filterable by success and minimum usage count.",
	}, wrap(r, "search_techniques", r.searchTechniques))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_technique_stats",
		Description: "Fetch usage/success statistics for one named technique.",
	}, wrap(r, "get_technique_stats", r.getTechniqueStats))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_similar_actions",
		Description: "Cosine-rank past mission actions against a free-text query.",
	}, wrap(r, "find_similar_actions", r.findSimilarActions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_successful_patterns_by_technique",
		Description: "List successful mission actions recorded for a named technique.",
	}, wrap(r, "find_successful_patterns_by_technique", r.findSuccessfulPatternsByTechnique))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_technique_library",
		Description: "Cosine-rank curated library entries against a free-text query.",
	}, wrap(r, "search_technique_library", r.searchTechniqueLibrary))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_action_embeddings",
		Description: "Compute and store embeddings for a previously recorded mission action.",
	}, wrap(r, "add_action_embeddings", r.addActionEmbeddings))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_technique_embedding",
		Description: "Compute and store the content embedding for a curated library entry.",
	}, wrap(r, "add_technique_embedding", r.addTechniqueEmbedding))
}

func (r *Registry) findSimilarTechniques(ctx context.Context, _ *mcp.CallToolRequest, args FindSimilarTechniquesArgs) (any, error) {
	if err := validateStruct("find_similar_techniques", args); err != nil {
		return nil, err
	}
	var fields []toolerr.FieldError
	successOnly := coerceBool("success_only", args.SuccessOnly, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("find_similar_techniques", fields)
	}
	groups, err := r.d.TechniqueStats.FindSimilarTechniques(ctx, args.Technique, args.MissionID, successOnly, similarityFloor(args.Theta, r.d.DefaultSimilarityFloor), limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *Registry) searchTechniques(ctx context.Context, _ *mcp.CallToolRequest, args SearchTechniquesArgs) (any, error) {
	var fields []toolerr.FieldError
	successOnly := coerceBool("success_only", args.SuccessOnly, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("search_techniques", fields)
	}
	usages, err := r.d.TechniqueStats.SearchTechniques(ctx, successOnly, args.MinUsage, limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return usages, nil
}

func (r *Registry) getTechniqueStats(ctx context.Context, _ *mcp.CallToolRequest, args GetTechniqueStatsArgs) (any, error) {
	if err := validateStruct("get_technique_stats", args); err != nil {
		return nil, err
	}
	stats, err := r.d.TechniqueStats.GetTechniqueStats(ctx, args.Technique)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Registry) findSimilarActions(ctx context.Context, _ *mcp.CallToolRequest, args FindSimilarActionsArgs) (any, error) {
	if err := validateStruct("find_similar_actions", args); err != nil {
		return nil, err
	}
	var fields []toolerr.FieldError
	successOnly := coerceBool("success_only", args.SuccessOnly, false, &fields)
	if len(fields) > 0 {
		return nil, validationErr("find_similar_actions", fields)
	}
	actions, err := r.d.Recall.FindSimilarActions(ctx, args.Query, args.MissionID, successOnly, similarityFloor(args.Theta, r.d.DefaultSimilarityFloor), limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *Registry) findSuccessfulPatternsByTechnique(ctx context.Context, _ *mcp.CallToolRequest, args FindSuccessfulPatternsByTechniqueArgs) (any, error) {
	if err := validateStruct("find_successful_patterns_by_technique", args); err != nil {
		return nil, err
	}
	actions, err := r.d.Recall.FindSuccessfulPatternsByTechnique(ctx, args.Technique, limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *Registry) searchTechniqueLibrary(ctx context.Context, _ *mcp.CallToolRequest, args SearchTechniqueLibraryArgs) (any, error) {
	if err := validateStruct("search_technique_library", args); err != nil {
		return nil, err
	}
	results, err := r.d.Recall.SearchTechniqueLibrary(ctx, args.Query, args.Category, similarityFloor(args.Theta, r.d.DefaultSimilarityFloor), limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Registry) addActionEmbeddings(ctx context.Context, _ *mcp.CallToolRequest, args AddActionEmbeddingsArgs) (any, error) {
	if err := validateStruct("add_action_embeddings", args); err != nil {
		return nil, err
	}
	if err := r.d.Recall.AddActionEmbeddingsByID(ctx, args.ActionID, args.Technique, args.Result); err != nil {
		return nil, err
	}
	return map[string]string{"action_id": args.ActionID, "status": "embedded"}, nil
}

func (r *Registry) addTechniqueEmbedding(ctx context.Context, _ *mcp.CallToolRequest, args AddTechniqueEmbeddingArgs) (any, error) {
	if err := validateStruct("add_technique_embedding", args); err != nil {
		return nil, err
	}
	if err := r.d.Recall.AddTechniqueEmbedding(ctx, args.TechniqueID, args.Content); err != nil {
		return nil, err
	}
	return map[string]string{"technique_id": args.TechniqueID, "status": "embedded"}, nil
}
