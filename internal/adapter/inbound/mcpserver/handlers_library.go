package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/service"
)

func (r *Registry) registerLibraryTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_library",
		Description: "Add a curated technique/payload to the library, rejecting near-duplicates within the same category.",
	}, wrap(r, "add_to_library", r.addToLibrary))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_library",
		Description: "Cosine-rank curated library entries against a free-text query, optionally scoped to a category.",
	}, wrap(r, "search_library", r.searchLibrary))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_library_stats",
		Description: "Summarize the curated library's size, per-category breakdown, and most recent entries.",
	}, wrap(r, "get_library_stats", r.getLibraryStats))
}

func (r *Registry) addToLibrary(ctx context.Context, _ *mcp.CallToolRequest, args AddToLibraryArgs) (any, error) {
	if err := validateStruct("add_to_library", args); err != nil {
		return nil, err
	}
	var fields []toolerr.FieldError
	metaData := coerceMap("meta_data", args.MetaData, &fields)
	if len(fields) > 0 {
		return nil, validationErr("add_to_library", fields)
	}

	t, err := r.d.Library.AddToLibrary(ctx, service.AddToLibraryParams{
		Category: args.Category,
		Title:    args.Title,
		Content:  args.Content,
		MetaData: metaData,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) searchLibrary(ctx context.Context, _ *mcp.CallToolRequest, args SearchLibraryArgs) (any, error) {
	if err := validateStruct("search_library", args); err != nil {
		return nil, err
	}
	results, err := r.d.Library.SearchLibrary(ctx, args.Query, args.Category, similarityFloor(args.Theta, r.d.DefaultSimilarityFloor), limitOrDefault(args.Limit))
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Registry) getLibraryStats(ctx context.Context, _ *mcp.CallToolRequest, args GetLibraryStatsArgs) (any, error) {
	recentLimit := args.RecentLimit
	if recentLimit <= 0 {
		recentLimit = defaultResultLimit
	}
	stats, err := r.d.Library.GetLibraryStats(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
