package facade

import (
	"context"
	"strings"
	"testing"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/logfabric"
	"github.com/pocketomega/mcp-supervisor/internal/manifest"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
	"github.com/pocketomega/mcp-supervisor/internal/reconcile"
	"github.com/pocketomega/mcp-supervisor/internal/supervisor"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	store, err := catalog.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	logs := logfabric.New()
	rec := reconcile.New(store, "http://127.0.0.1:8000", logs)
	sup := supervisor.New(store, logs)
	return New(store, rec, sup, logs)
}

func TestImportManifest_DefaultsToLocalSource(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	if _, err := f.Store.EnsureLocalSource(ctx, "mcp-supervisor"); err != nil {
		t.Fatal(err)
	}

	file := &manifest.File{MCPServers: map[string]manifest.Entry{
		"alpha": {Command: strPtr("echo"), Args: []string{"hi"}},
	}}
	result, err := f.ImportManifest(ctx, "", file)
	if err != nil {
		t.Fatal(err)
	}
	if result.Inserted != 1 {
		t.Fatalf("expected 1 insert, got %+v", result)
	}

	tools, err := f.ListTools(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 || tools[0].Name != "alpha" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if tools[0].Status != catalog.ToolStopped {
		t.Fatalf("expected status stopped, got %s", tools[0].Status)
	}
}

func TestImportManifest_RejectsEmptyPayload(t *testing.T) {
	f := newTestFacade(t)
	if _, err := f.ImportManifest(context.Background(), "", &manifest.File{}); !mcperr.Is(err, mcperr.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

// S4 — start with missing required env.
func TestStartTool_MissingRequiredEnv(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	local, err := f.Store.EnsureLocalSource(ctx, "mcp-supervisor")
	if err != nil {
		t.Fatal(err)
	}
	tool := &catalog.Tool{
		SourceID:   local.ID,
		Name:       "needs-key",
		Command:    strPtr("echo"),
		EnvConfig:  []catalog.EnvConfigEntry{{Key: "API_KEY", Required: true}},
		Status:     catalog.ToolStopped,
		ConfigJSON: "{}",
		ConfigHash: "deadbeef",
	}
	if err := f.Store.UpsertTool(ctx, tool); err != nil {
		t.Fatal(err)
	}

	if err := f.StartTool(ctx, tool.ID); !mcperr.Is(err, mcperr.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}

	got, err := f.GetTool(ctx, tool.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != catalog.ToolPending {
		t.Fatalf("expected status pending, got %s", got.Status)
	}
	if got.LastError == nil || !strings.Contains(*got.LastError, "API_KEY") {
		t.Fatalf("expected error mentioning API_KEY, got %v", got.LastError)
	}

	logs := f.GetLogs(tool.ID)
	found := false
	for _, l := range logs {
		if l.Stream == "event" && strings.Contains(l.Message, "API_KEY") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a synthetic event log mentioning API_KEY, got %+v", logs)
	}
}

func TestApplyPendingConfig_RequiresExplicitTrue(t *testing.T) {
	f := newTestFacade(t)
	if err := f.ApplyPendingConfig(context.Background(), "whatever", false); !mcperr.Is(err, mcperr.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestResolveConflict_InvalidAction(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	local, err := f.Store.EnsureLocalSource(ctx, "mcp-supervisor")
	if err != nil {
		t.Fatal(err)
	}
	tool := &catalog.Tool{SourceID: local.ID, Name: "x", Status: catalog.ToolStopped, ConfigJSON: "{}", ConfigHash: "h"}
	if err := f.Store.UpsertTool(ctx, tool); err != nil {
		t.Fatal(err)
	}
	if err := f.ResolveConflict(ctx, tool.ID, "nonsense"); !mcperr.Is(err, mcperr.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
