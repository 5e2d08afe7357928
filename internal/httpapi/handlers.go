package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pocketomega/mcp-supervisor/internal/facade"
	"github.com/pocketomega/mcp-supervisor/internal/logfabric"
	"github.com/pocketomega/mcp-supervisor/internal/manifest"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

const maxRequestBody = 1 << 20 // 1MB

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return mcperr.New(mcperr.Validation, "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return mcperr.Wrap(mcperr.Validation, err)
	}
	return nil
}

// ── Sources ──

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.facade.ListSources(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

type createSourceRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	PathOrURL string `json:"path_or_url"`
	Trust     string `json:"trust"`
	ReadOnly  bool   `json:"read_only"`
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	src, err := s.facade.CreateSource(r.Context(), facade.CreateSourceInput{
		Name:      req.Name,
		Kind:      req.Kind,
		PathOrURL: req.PathOrURL,
		Trust:     req.Trust,
		ReadOnly:  req.ReadOnly,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

type syncRequest struct {
	AuthToken string `json:"auth_token"`
}

func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req syncRequest
	if r.ContentLength != 0 {
		_ = decodeBody(r, &req) // empty/absent body means no auth token
	}
	result, err := s.facade.SyncSource(r.Context(), id, req.AuthToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSyncCloudSubscriptions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req syncRequest
	if r.ContentLength != 0 {
		_ = decodeBody(r, &req)
	}
	result, err := s.facade.SyncCloudSubscriptions(r.Context(), id, req.AuthToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cloudBaseURLRequest struct {
	BaseURL string `json:"base_url"`
}

func (s *Server) handleSetCloudBaseURL(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req cloudBaseURLRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.SetCloudBaseURL(r.Context(), id, req.BaseURL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Tools ──

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.facade.ListTools(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

type importRequest struct {
	SourceID string        `json:"source_id"`
	Config   manifest.File `json:"config"`
}

func (s *Server) handleImportManifest(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.facade.ImportManifest(r.Context(), req.SourceID, &req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartTool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.facade.StartTool(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStopTool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.facade.StopTool(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateEnvRequest struct {
	Env map[string]string `json:"env"`
}

func (s *Server) handleUpdateToolEnv(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateEnvRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.UpdateToolEnv(r.Context(), id, req.Env); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type applyPendingRequest struct {
	ApplyPending bool `json:"apply_pending"`
}

func (s *Server) handleApplyPendingConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req applyPendingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.ApplyPendingConfig(r.Context(), id, req.ApplyPending); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveConflictRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req resolveConflictRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.ResolveConflict(r.Context(), id, req.Action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Logs ──

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries := s.facade.GetLogs(id)
	if entries == nil {
		entries = []logfabric.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.facade.ClearLogs(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.facade.Logs.ServeSSE(w, r, id)
}
