package cookiesession

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cookie_sessions.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}
	return path
}

func writeCookieFile(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(`{"session_id":"abc123","theme":"dark"}`), mode); err != nil {
		t.Fatalf("WriteFile cookies: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	return path
}

func TestProvider_ValidSession(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "admin.json", 0o600)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  admin:
    description: admin session
    cookie_file: admin.json
`)
	p := NewProvider(manifestPath, dataDir)

	resp := p.Read("admin")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Cookies["session_id"] != "abc123" || resp.Cookies["theme"] != "dark" {
		t.Fatalf("unexpected cookies: %#v", resp.Cookies)
	}
	if resp.FromCache {
		t.Fatal("first read should not be from cache")
	}
}

func TestProvider_InsecurePermissionsRejected(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "leaky.json", 0o644)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  leaky:
    cookie_file: leaky.json
`)
	p := NewProvider(manifestPath, dataDir)

	resp := p.Read("leaky")
	if resp.Error == "" {
		t.Fatal("expected an error for insecure permissions")
	}
	if !strings.Contains(resp.Error, "insecure permissions") {
		t.Fatalf("expected 'insecure permissions' substring, got %q", resp.Error)
	}
	if len(resp.Cookies) != 0 {
		t.Fatalf("expected empty cookies on error, got %#v", resp.Cookies)
	}
}

func TestProvider_UnknownSessionIsStructuredError(t *testing.T) {
	dataDir := t.TempDir()
	manifestPath := writeManifest(t, dataDir, "version: \"1.0\"\nsessions: {}\n")
	p := NewProvider(manifestPath, dataDir)

	resp := p.Read("ghost")
	if resp.Error == "" || len(resp.Cookies) != 0 {
		t.Fatalf("expected structured error with empty cookies, got %#v", resp)
	}
}

func TestProvider_InvalidSessionNameSkipped(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "ok.json", 0o600)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  "bad/name":
    cookie_file: ok.json
  good-name_1:
    cookie_file: ok.json
`)
	p := NewProvider(manifestPath, dataDir)

	names := p.ListSessionNames()
	if len(names) != 1 || names[0] != "good-name_1" {
		t.Fatalf("expected only the valid session name to load, got %v", names)
	}
}

func TestProvider_PathTraversalRejected(t *testing.T) {
	dataDir := t.TempDir()
	outside := t.TempDir()
	writeCookieFile(t, outside, "secret.json", 0o600)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  escape:
    cookie_file: ../../../etc/passwd
`)
	p := NewProvider(manifestPath, dataDir)

	resp := p.Read("escape")
	if resp.Error == "" {
		t.Fatal("expected a traversal error")
	}
}

func TestProvider_CacheHitsWithinTTL(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "cached.json", 0o600)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  cached:
    cookie_file: cached.json
    cache_ttl: 60
`)
	p := NewProvider(manifestPath, dataDir)

	first := p.Read("cached")
	if first.FromCache {
		t.Fatal("first read should miss cache")
	}
	second := p.Read("cached")
	if !second.FromCache {
		t.Fatal("second read within TTL should hit cache")
	}
}

func TestProvider_MtimeChangeInvalidatesCache(t *testing.T) {
	dataDir := t.TempDir()
	path := writeCookieFile(t, dataDir, "rotating.json", 0o600)
	manifestPath := writeManifest(t, dataDir, `
version: "1.0"
sessions:
  rotating:
    cookie_file: rotating.json
    cache_ttl: 3600
`)
	p := NewProvider(manifestPath, dataDir)

	first := p.Read("rotating")
	if first.Cookies["session_id"] != "abc123" {
		t.Fatalf("unexpected initial cookies: %#v", first.Cookies)
	}

	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"session_id":"rotated"}`), 0o600); err != nil {
		t.Fatalf("rewrite cookie file: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	second := p.Read("rotating")
	if second.FromCache {
		t.Fatal("expected cache invalidation after mtime change")
	}
	if second.Cookies["session_id"] != "rotated" {
		t.Fatalf("expected rotated cookie value, got %#v", second.Cookies)
	}
}
