package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/facade"
	"github.com/pocketomega/mcp-supervisor/internal/logfabric"
	"github.com/pocketomega/mcp-supervisor/internal/reconcile"
	"github.com/pocketomega/mcp-supervisor/internal/supervisor"
)

func newTestServer(t *testing.T) (*Server, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := store.EnsureLocalSource(context.Background(), "mcp-supervisor"); err != nil {
		t.Fatal(err)
	}

	logs := logfabric.New()
	rec := reconcile.New(store, "http://127.0.0.1:8000", logs)
	sup := supervisor.New(store, logs)
	return NewServer(facade.New(store, rec, sup, logs)), store
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestImportThenListTools(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/mcp/tools/import", map[string]any{
		"config": map[string]any{
			"mcpServers": map[string]any{
				"alpha": map[string]any{"command": "echo", "args": []string{"hi"}},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/mcp/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list tools: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Tools []catalog.Tool `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tools) != 1 || resp.Tools[0].Name != "alpha" {
		t.Fatalf("unexpected tools: %+v", resp.Tools)
	}
}

func TestImportManifest_EmptyPayloadIs400(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/mcp/tools/import", map[string]any{"config": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStartUnknownTool_Is404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/mcp/tools/does-not-exist/start", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResolveConflict_InvalidActionIs400(t *testing.T) {
	s, store := newTestServer(t)
	local, err := store.FindSourceByKind(context.Background(), catalog.SourceLocal)
	if err != nil {
		t.Fatal(err)
	}
	tool := &catalog.Tool{SourceID: local.ID, Name: "x", Status: catalog.ToolStopped, ConfigJSON: "{}", ConfigHash: "h"}
	if err := store.UpsertTool(context.Background(), tool); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPost, "/mcp/tools/"+tool.ID+"/resolve-conflict", map[string]string{"action": "nonsense"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetLogs_EmptyRing(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/mcp/tools/some-id/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Entries []logfabric.LogEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 0 {
		t.Fatalf("expected empty entries, got %+v", resp.Entries)
	}
}
