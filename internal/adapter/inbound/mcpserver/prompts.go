package mcpserver

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

//go:embed prompts/guides/*.yaml
var builtinPromptFS embed.FS

// promptGuide is one loaded prompt://<id> resource: a freeform guide
// document plus the bookkeeping the markdown/yaml renderers need.
type promptGuide struct {
	id     string
	source string // "builtin" or "user"
	data   map[string]any
}

// PromptLibrary serves prompt guide documents as MCP resources. It
// loads once at construction — built-ins from the embedded guides
// directory, then an optional override directory whose files replace
// built-ins sharing the same filename stem — matching the source
// project's load-once, user-overrides-builtin behavior; prompts are
// not hot-reloaded after startup.
type PromptLibrary struct {
	guides map[string]promptGuide
}

// NewPromptLibrary loads the embedded built-in guides and, when dir is
// non-empty and exists, every *.yaml file under it, with user files
// overriding a built-in of the same stem.
func NewPromptLibrary(dir string) (*PromptLibrary, error) {
	p := &PromptLibrary{guides: map[string]promptGuide{}}

	builtinEntries, err := fs.Glob(builtinPromptFS, "prompts/guides/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob built-in prompts: %w", err)
	}
	for _, name := range builtinEntries {
		raw, err := builtinPromptFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read built-in prompt %s: %w", name, err)
		}
		id := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		data, err := parsePromptYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("parse built-in prompt %s: %w", name, err)
		}
		p.guides[id] = promptGuide{id: id, source: "builtin", data: data}
	}

	if dir == "" {
		return p, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read prompts dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read user prompt %s: %w", entry.Name(), err)
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		data, err := parsePromptYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("parse user prompt %s: %w", entry.Name(), err)
		}
		p.guides[id] = promptGuide{id: id, source: "user", data: data}
	}
	return p, nil
}

func parsePromptYAML(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if _, ok := data["name"]; !ok {
		return nil, fmt.Errorf("missing required 'name' field")
	}
	return data, nil
}

// IDs returns every loaded guide's ID, sorted, for resource listing.
func (p *PromptLibrary) IDs() []string {
	ids := make([]string, 0, len(p.guides))
	for id := range p.guides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Guide returns the named guide's source ("builtin" or "user") and its
// name and description fields, for metadata in resource listings; ok
// is false when no guide has that id.
func (p *PromptLibrary) Guide(id string) (source string, name, description string, ok bool) {
	g, found := p.guides[id]
	if !found {
		return "", "", "", false
	}
	name, _ = g.data["name"].(string)
	description, _ = g.data["description"].(string)
	return g.source, name, description, true
}

// Render returns id's guide document in the requested format —
// "json" (the default, the bare document map), "yaml", or "markdown".
func (p *PromptLibrary) Render(id, format string) (content, mimeType string, err error) {
	g, ok := p.guides[id]
	if !ok {
		return "", "", &toolerr.ResourceError{URI: "prompt://" + id, Message: "prompt not found: " + id}
	}

	switch format {
	case "", "json":
		data, err := json.Marshal(g.data)
		if err != nil {
			return "", "", err
		}
		return string(data), "application/json", nil
	case "yaml":
		out, err := yaml.Marshal(g.data)
		if err != nil {
			return "", "", err
		}
		return string(out), "text/yaml", nil
	case "markdown":
		return renderPromptMarkdown(g.data), "text/markdown", nil
	default:
		return "", "", &toolerr.ResourceError{URI: "prompt://" + id, Message: "unsupported format: " + format}
	}
}

func renderPromptMarkdown(data map[string]any) string {
	var b strings.Builder
	name, _ := data["name"].(string)
	if name == "" {
		name = "Prompt Guide"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	if version, ok := data["version"]; ok {
		fmt.Fprintf(&b, "**Version:** %v\n\n", version)
	}
	if description, ok := data["description"].(string); ok && description != "" {
		fmt.Fprintf(&b, "%s\n\n", description)
	}
	if role, ok := data["role"].(string); ok && role != "" {
		b.WriteString("## Role\n\n")
		fmt.Fprintf(&b, "%s\n\n", role)
	}
	if tools, ok := data["tools"].(map[string]any); ok {
		b.WriteString("## Tools\n\n")
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, toolName := range names {
			fmt.Fprintf(&b, "### %s\n\n", toolName)
			if info, ok := tools[toolName].(map[string]any); ok {
				if desc, ok := info["description"].(string); ok && desc != "" {
					fmt.Fprintf(&b, "%s\n\n", desc)
				}
			}
		}
	}
	return b.String()
}
