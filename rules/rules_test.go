package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestLoadAndMatch(t *testing.T) {
	path := writeRules(t, `
blocked_path_prefixes:
  - /admin
  - /internal/
blocked_hosts:
  - Evil.Example.Com
blocked_methods:
  - TRACE
status: 451
body: not here
`)
	set, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		method, host, path string
		blocked            bool
		rule               string
	}{
		{"GET", "a.com", "/admin/users", true, "path:/admin"},
		{"GET", "a.com", "/administrivia", true, "path:/admin"},
		{"GET", "evil.example.com", "/", true, "host:Evil.Example.Com"},
		{"trace", "a.com", "/", true, "method:TRACE"},
		{"GET", "a.com", "/public", false, ""},
	}
	for _, tc := range cases {
		blocked, rule := set.Match(tc.method, tc.host, tc.path)
		if blocked != tc.blocked || rule != tc.rule {
			t.Errorf("Match(%s %s %s) = %v %q, want %v %q", tc.method, tc.host, tc.path, blocked, rule, tc.blocked, tc.rule)
		}
	}

	if set.Status() != 451 || set.Body() != "not here" {
		t.Fatalf("status/body = %d %q", set.Status(), set.Body())
	}
}

func TestMissingFileAllowsEverything(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if blocked, _ := set.Match("GET", "any", "/any"); blocked {
		t.Fatal("empty set must allow")
	}
	if set.Status() != 403 {
		t.Fatalf("default status = %d", set.Status())
	}
}

func TestReloadSwapsRules(t *testing.T) {
	path := writeRules(t, "blocked_path_prefixes: [/old]\n")
	set, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if blocked, _ := set.Match("GET", "h", "/old/x"); !blocked {
		t.Fatal("initial rule missing")
	}

	if err := os.WriteFile(path, []byte("blocked_path_prefixes: [/new]\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := set.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if blocked, _ := set.Match("GET", "h", "/old/x"); blocked {
		t.Fatal("old rule survived reload")
	}
	if blocked, _ := set.Match("GET", "h", "/new/x"); !blocked {
		t.Fatal("new rule missing after reload")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeRules(t, "blocked_path_prefixes: {not a list\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
