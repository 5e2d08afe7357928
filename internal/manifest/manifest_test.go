package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEntry_ExtraPassthrough(t *testing.T) {
	raw := `{"command":"echo","custom_field":"keep-me","nested":{"a":1}}`
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Command == nil || *e.Command != "echo" {
		t.Fatalf("expected command extracted, got %+v", e.Command)
	}
	if e.Extra["custom_field"] != "keep-me" {
		t.Fatalf("expected custom_field preserved in Extra, got %+v", e.Extra)
	}
	if _, ok := e.Extra["nested"]; !ok {
		t.Fatalf("expected nested object preserved in Extra, got %+v", e.Extra)
	}
}

func TestFetchLocal_ParsesManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	content := `{"mcpServers":{"alpha":{"command":"echo","args":["hi"]}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := FetchLocal(path)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := f.MCPServers["alpha"]
	if !ok {
		t.Fatal("expected alpha entry")
	}
	if entry.Command == nil || *entry.Command != "echo" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	if got := ExpandHome("~/.config/app/mcp.json"); got != "/home/tester/.config/app/mcp.json" {
		t.Fatalf("got %s", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("expected absolute path unchanged, got %s", got)
	}
}

func TestNormalize_DescriptionFallback(t *testing.T) {
	n, err := Normalize("alpha", Entry{})
	if err != nil {
		t.Fatal(err)
	}
	if n.Description != "MCP tool" {
		t.Fatalf("expected fallback description, got %q", n.Description)
	}
}

func TestNormalize_HashStableAcrossKeyOrder(t *testing.T) {
	raw1 := `{"command":"echo","args":["hi"],"env":{"A":"1","B":"2"}}`
	raw2 := `{"env":{"B":"2","A":"1"},"args":["hi"],"command":"echo"}`

	var e1, e2 Entry
	_ = json.Unmarshal([]byte(raw1), &e1)
	_ = json.Unmarshal([]byte(raw2), &e2)

	n1, err := Normalize("alpha", e1)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := Normalize("alpha", e2)
	if err != nil {
		t.Fatal(err)
	}
	if n1.ConfigHash != n2.ConfigHash {
		t.Fatalf("expected equal hashes, got %s vs %s", n1.ConfigHash, n2.ConfigHash)
	}
}

func TestNormalize_EnvConfigAffectsHash(t *testing.T) {
	n1, _ := Normalize("alpha", Entry{Command: strPtr("echo")})
	n2, _ := Normalize("alpha", Entry{Command: strPtr("echo"), EnvConfig: []EnvConfigEntry{{Key: "API_KEY", Required: true}}})
	if n1.ConfigHash == n2.ConfigHash {
		t.Fatal("expected env_config to participate in the hash")
	}
}

func TestNormalizeCloudTool_FoldsDescriptiveFieldsIntoPassthrough(t *testing.T) {
	cat := "search"
	author := "acme"
	official := true
	ct := CloudTool{
		ID:          "ct1",
		Identifier:  "acme/search",
		Name:        "search-tool",
		Description: "Searches things",
		Category:    &cat,
		Author:      &author,
		IsOfficial:  &official,
		InstallManifest: CloudInstallManifest{
			Command: "npx",
			Args:    []string{"search-server"},
		},
	}
	n, err := NormalizeCloudTool(ct)
	if err != nil {
		t.Fatal(err)
	}
	if n.Canonical["category"] != "search" || n.Canonical["author"] != "acme" || n.Canonical["is_official"] != true {
		t.Fatalf("expected descriptive fields folded into canonical passthrough, got %+v", n.Canonical)
	}
}

func strPtr(s string) *string { return &s }
