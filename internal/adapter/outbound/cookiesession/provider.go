// Package cookiesession implements the Cookie Session MCP resource
// provider: it discovers named cookie sessions from a YAML manifest,
// serves each as a JSON resource, enforces file-permission and
// path-traversal security on the backing files, and caches payloads
// with TTL expiry and mtime-based hot reload.
package cookiesession

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// manifest is the on-disk YAML shape.
type manifest struct {
	Version  string                `yaml:"version"`
	Sessions map[string]sessionDef `yaml:"sessions"`
}

type sessionDef struct {
	Description string            `yaml:"description"`
	CookieFile  string            `yaml:"cookie_file"`
	CacheTTL    *int              `yaml:"cache_ttl"`
	Metadata    map[string]string `yaml:"metadata"`
}

const defaultCacheTTL = 60 * time.Second

// Response is the JSON shape returned for a cookie-session:// read.
type Response struct {
	Cookies      map[string]string `json:"cookies"`
	SessionName  string            `json:"session_name"`
	Description  string            `json:"description"`
	LastUpdated  string            `json:"last_updated"`
	FromCache    bool              `json:"from_cache"`
	FileModified string            `json:"file_modified,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type cacheEntry struct {
	mu        sync.Mutex
	response  Response
	cachedAt  time.Time
	fileMtime time.Time
}

// Provider serves cookie sessions as MCP resources.
type Provider struct {
	configPath string
	dataDir    string
	homeDir    string

	mu           sync.RWMutex
	sessions     map[string]sessionDef
	manifestMod  time.Time
	manifestSeen bool

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
}

// NewProvider builds a Provider reading its manifest from configPath
// and resolving relative cookie_file entries against dataDir.
func NewProvider(configPath, dataDir string) *Provider {
	home, _ := os.UserHomeDir()
	return &Provider{
		configPath: configPath,
		dataDir:    dataDir,
		homeDir:    home,
		sessions:   map[string]sessionDef{},
		cache:      map[string]*cacheEntry{},
	}
}

// reload checks the manifest's modification time and re-parses it if
// changed, or clears the session set if the file has disappeared.
// Called before every list/read so sessions stay current without a
// restart.
func (p *Provider) reload() {
	info, err := os.Stat(p.configPath)
	if err != nil {
		p.mu.Lock()
		if p.manifestSeen {
			p.sessions = map[string]sessionDef{}
			p.manifestSeen = false
		}
		p.mu.Unlock()
		return
	}

	p.mu.RLock()
	unchanged := p.manifestSeen && info.ModTime().Equal(p.manifestMod)
	p.mu.RUnlock()
	if unchanged {
		return
	}

	raw, err := os.ReadFile(p.configPath)
	if err != nil {
		return
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return
	}

	sessions := make(map[string]sessionDef, len(m.Sessions))
	for name, def := range m.Sessions {
		if !sessionNamePattern.MatchString(name) {
			continue
		}
		if def.CookieFile == "" {
			continue
		}
		sessions[name] = def
	}

	// The mtime recorded is the one observed before the read, so a
	// manifest that changes while it is being read is parsed again on
	// the next reload.
	p.mu.Lock()
	p.sessions = sessions
	p.manifestMod = info.ModTime()
	p.manifestSeen = true
	p.mu.Unlock()
}

// ListSessionNames returns every configured session name, after a
// hot-reload check.
func (p *Provider) ListSessionNames() []string {
	p.reload()
	p.sweepExpired()
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	return names
}

// sweepExpired drops cache entries cached more than ten default TTLs
// ago; called on every list to bound cache growth.
func (p *Provider) sweepExpired() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	now := time.Now()
	for name, entry := range p.cache {
		entry.mu.Lock()
		expired := now.Sub(entry.cachedAt) > 10*defaultCacheTTL
		entry.mu.Unlock()
		if expired {
			delete(p.cache, name)
		}
	}
}

// ClearCache wipes every cached entry.
func (p *Provider) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = map[string]*cacheEntry{}
}

// Read resolves and returns the current payload for a named session.
// It never returns a Go error: every failure mode — unknown session,
// traversal, permission, JSON — becomes a structured Response with
// Error set and Cookies emptied, because the agent must be able to
// see why cookies are unavailable.
func (p *Provider) Read(name string) Response {
	p.reload()
	p.sweepExpired()

	p.mu.RLock()
	def, ok := p.sessions[name]
	p.mu.RUnlock()
	if !ok {
		return Response{SessionName: name, Cookies: map[string]string{}, Error: fmt.Sprintf("unknown cookie session %q", name)}
	}

	ttl := defaultCacheTTL
	if def.CacheTTL != nil {
		ttl = time.Duration(*def.CacheTTL) * time.Second
	}

	entry := p.entryFor(name)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	info, statErr := os.Stat(resolveCandidatePath(def.CookieFile, p.dataDir, p.homeDir))
	if statErr == nil && !entry.cachedAt.IsZero() && info.ModTime().Equal(entry.fileMtime) &&
		time.Since(entry.cachedAt) < ttl {
		resp := entry.response
		resp.FromCache = true
		return resp
	}

	resp := p.load(name, def)
	entry.response = resp
	entry.cachedAt = time.Now()
	if statErr == nil {
		entry.fileMtime = info.ModTime()
	}
	return resp
}

func (p *Provider) entryFor(name string) *cacheEntry {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	e, ok := p.cache[name]
	if !ok {
		e = &cacheEntry{}
		p.cache[name] = e
	}
	return e
}

func (p *Provider) load(name string, def sessionDef) Response {
	resp := Response{SessionName: name, Description: def.Description, Metadata: def.Metadata, Cookies: map[string]string{}}

	path, secErr := resolveSecure(def.CookieFile, p.dataDir, p.homeDir)
	if secErr != nil {
		resp.Error = secErr.Error()
		return resp
	}

	info, err := os.Stat(path)
	if err != nil {
		resp.Error = fmt.Sprintf("cookie file unreadable: %v", err)
		return resp
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		resp.Error = fmt.Sprintf("cookie file %s has insecure permissions %04o, expected 0600 or 0400", path, mode)
		return resp
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		resp.Error = fmt.Sprintf("cookie file unreadable: %v", err)
		return resp
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		resp.Error = fmt.Sprintf("cookie file is not a JSON object: %v", err)
		return resp
	}
	cookies := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			cookies[k] = val
		default:
			cookies[k] = fmt.Sprintf("%v", val)
		}
	}

	resp.Cookies = cookies
	resp.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	resp.FileModified = info.ModTime().UTC().Format(time.RFC3339)
	return resp
}

// resolveCandidatePath expands ~ and resolves a relative path against
// dataDir without doing the traversal/permission checks — used only
// to compare mtimes for the cache-hit fast path.
func resolveCandidatePath(raw, dataDir, homeDir string) string {
	p := expandHome(raw, homeDir)
	if !filepath.IsAbs(p) {
		p = filepath.Join(dataDir, p)
	}
	return p
}

func expandHome(raw, homeDir string) string {
	if raw == "~" {
		return homeDir
	}
	if strings.HasPrefix(raw, "~/") {
		return filepath.Join(homeDir, raw[2:])
	}
	return raw
}

// resolveSecure implements the path-traversal protocol: expand ~,
// resolve relative paths against dataDir, canonicalize symlinks, and
// require the result to lie within the data dir or the home
// directory — with a carve-out for paths under /tmp, but only when
// the caller's original string was itself absolute and under /tmp.
func resolveSecure(raw, dataDir, homeDir string) (string, error) {
	wasAbsoluteTmp := strings.HasPrefix(raw, "/tmp/")
	candidate := resolveCandidatePath(raw, dataDir, homeDir)

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// The original python implementation resolves with
		// strict=False, i.e. a missing file is not itself a
		// traversal error; fall through with the un-evaluated path
		// so a later os.Stat reports "unreadable" instead.
		resolved = candidate
	}

	allowedDirs := []string{dataDir, homeDir}
	for _, dir := range allowedDirs {
		if dir == "" {
			continue
		}
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	if wasAbsoluteTmp && strings.HasPrefix(resolved, "/tmp/") {
		return resolved, nil
	}

	return "", fmt.Errorf("cookie file path %q resolves outside the allowed directories", raw)
}
