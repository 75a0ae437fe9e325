package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerResources binds cookie-session:// and prompt:// resources.
// Both sets are enumerable at Build time — cookie sessions from the
// provider's manifest, prompts from the loaded guide library — so each
// gets its own fixed-URI registration rather than a wildcard template,
// mirroring how the corpus's MCP servers register resources.
func (r *Registry) registerResources(server *mcp.Server) {
	if r.d.Cookies != nil {
		for _, name := range r.d.Cookies.ListSessionNames() {
			r.registerCookieResource(server, name)
		}
	}
	if r.d.Prompts != nil {
		for _, id := range r.d.Prompts.IDs() {
			r.registerPromptResource(server, id)
		}
	}
}

func (r *Registry) registerCookieResource(server *mcp.Server, name string) {
	uri := fmt.Sprintf("cookie-session://%s", name)
	server.AddResource(&mcp.Resource{
		URI:         uri,
		Name:        "cookie-session-" + name,
		Description: "Cookies for the " + name + " session, refreshed from disk on a TTL.",
		MIMEType:    "application/json",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		resp := r.d.Cookies.Read(name)
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("marshal cookie session %s: %w", name, err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	})
}

func (r *Registry) registerPromptResource(server *mcp.Server, id string) {
	source, name, description, _ := r.d.Prompts.Guide(id)
	if name == "" {
		name = "Prompt: " + id
	}
	if source == "user" {
		description += " (user-defined)"
	}
	uri := fmt.Sprintf("prompt://%s", id)
	server.AddResource(&mcp.Resource{
		URI:         uri,
		Name:        name,
		Description: description,
		MIMEType:    "application/json",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		format := "json"
		if parsed, err := url.Parse(req.Params.URI); err == nil {
			if f := parsed.Query().Get("format"); f != "" {
				format = f
			}
		}
		content, mimeType, err := r.d.Prompts.Render(id, format)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: mimeType,
				Text:     content,
			}},
		}, nil
	})
}
