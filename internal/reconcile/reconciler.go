// Package reconcile implements the manifest reconciler: fetching a
// source's manifest, normalizing and hashing each entry, classifying it
// against the catalog (insert, unchanged, update-in-place, or
// mark-pending), and persisting the result.
package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/manifest"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

// EventEmitter is the narrow slice of the Log Fabric the reconciler
// needs: the ability to append a synthetic event-stream line for a tool
// (used by the orphan sweep). Defined here, implemented by
// internal/logfabric, to keep this package free of a dependency on the
// streaming layer's concrete types.
type EventEmitter interface {
	Emit(toolID, stream, message string)
}

// noopEmitter silently drops events; used when the reconciler is built
// without a Log Fabric (e.g. in tests that don't care about log output).
type noopEmitter struct{}

func (noopEmitter) Emit(string, string, string) {}

// Reconciler owns sync/classify/apply-pending/resolve-conflict and the
// hot-reconfigurable cloud base URL cell.
type Reconciler struct {
	store   *catalog.Store
	emitter EventEmitter

	cloudMu  sync.RWMutex
	cloudURL string
}

// New builds a Reconciler. defaultCloudBaseURL seeds the hot-reconfigurable
// cloud base URL cell.
func New(store *catalog.Store, defaultCloudBaseURL string, emitter EventEmitter) *Reconciler {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Reconciler{store: store, emitter: emitter, cloudURL: defaultCloudBaseURL}
}

// SetCloudBaseURL hot-swaps the base URL used by the next cloud sync.
func (r *Reconciler) SetCloudBaseURL(url string) {
	r.cloudMu.Lock()
	r.cloudURL = url
	r.cloudMu.Unlock()
}

// CloudBaseURL returns the currently configured cloud base URL.
func (r *Reconciler) CloudBaseURL() string {
	r.cloudMu.RLock()
	defer r.cloudMu.RUnlock()
	return r.cloudURL
}

// Result summarizes the classification outcomes of one sync pass.
type Result struct {
	Inserted  int
	Unchanged int
	Updated   int
	Pending   int
	Orphaned  int
}

// Sync fetches and reconciles a non-cloud source (local file or a
// generic/modelscope/github/url HTTP endpoint, all of which speak the
// plain "mcpServers" manifest shape). Cloud sources must use
// SyncCloudSubscriptions instead — the wire shape differs enough that
// sharing one entry point would blur the two.
func (r *Reconciler) Sync(ctx context.Context, sourceID, authToken string) (*Result, error) {
	source, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Kind == catalog.SourceCloud {
		return nil, mcperr.New(mcperr.Validation, "cloud sources must sync via sync_cloud_subscriptions")
	}

	if err := r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceSyncing, nil); err != nil {
		return nil, err
	}

	var file *manifest.File
	if source.Kind == catalog.SourceLocal {
		file, err = manifest.FetchLocal(source.PathOrURL)
	} else {
		file, err = manifest.FetchHTTP(ctx, source.PathOrURL, authToken)
	}
	if err != nil {
		_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
		return nil, err
	}

	result, err := r.applyManifest(ctx, source, file, catalog.ToolStopped)
	if err != nil {
		_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
		return nil, err
	}

	now := time.Now().UTC()
	if err := r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceActive, &now); err != nil {
		return nil, err
	}
	return result, nil
}

// ImportManifest reconciles file directly against sourceID without
// fetching it from anywhere — the HTTP "import" operation's payload is
// the manifest itself. Source status bookkeeping is skipped: an import
// is not a sync attempt against the source's own path_or_url.
func (r *Reconciler) ImportManifest(ctx context.Context, sourceID string, file *manifest.File) (*Result, error) {
	source, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return r.applyManifest(ctx, source, file, catalog.ToolStopped)
}

func (r *Reconciler) applyManifest(ctx context.Context, source *catalog.Source, file *manifest.File, insertStatus catalog.ToolStatus) (*Result, error) {
	result := &Result{}

	names := make([]string, 0, len(file.MCPServers))
	for name := range file.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic processing order, useful for tests and logs

	for _, name := range names {
		entry := file.MCPServers[name]
		norm, err := manifest.Normalize(name, entry)
		if err != nil {
			return nil, err
		}
		outcome, err := r.applyEntry(ctx, source, name, nil, norm, insertStatus)
		if err != nil {
			return nil, err
		}
		tally(result, outcome)
	}
	return result, nil
}

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeUnchanged outcome = "unchanged"
	outcomeUpdated   outcome = "updated"
	outcomePending   outcome = "pending"
)

func tally(r *Result, o outcome) {
	switch o {
	case outcomeInserted:
		r.Inserted++
	case outcomeUnchanged:
		r.Unchanged++
	case outcomeUpdated:
		r.Updated++
	case outcomePending:
		r.Pending++
	}
}

// applyEntry is the classify-and-write core shared by the local/generic
// sync path, the import path, and the cloud subscription path.
// identifier is nil for local/generic entries.
func (r *Reconciler) applyEntry(ctx context.Context, source *catalog.Source, name string, identifier *string, norm *manifest.Normalized, insertStatus catalog.ToolStatus) (outcome, error) {
	var existing *catalog.Tool
	var err error
	if identifier != nil && *identifier != "" {
		existing, err = r.store.GetToolBySourceIdentifier(ctx, source.ID, *identifier)
	} else {
		existing, err = r.store.GetToolBySourceName(ctx, source.ID, name)
	}
	if err != nil {
		return "", err
	}

	isReadOnly := source.Kind != catalog.SourceLocal || source.ReadOnly
	nameConflict, err := r.store.HasNameConflict(ctx, name, source.ID)
	if err != nil {
		return "", err
	}

	if existing == nil {
		conflict := catalog.ConflictNone
		if nameConflict {
			conflict = catalog.ConflictConflict
		}
		tool := &catalog.Tool{
			SourceID:       source.ID,
			Identifier:     identifier,
			Name:           name,
			Description:    norm.Description,
			Command:        norm.Command,
			Args:           norm.Args,
			Env:            norm.Env,
			Capabilities:   norm.Capabilities,
			EnvConfig:      toCatalogEnvConfig(norm.EnvConfig),
			Status:         insertStatus,
			ConfigJSON:     norm.ConfigJSON,
			ConfigHash:     norm.ConfigHash,
			ConflictStatus: conflict,
			ReadOnly:       isReadOnly,
			IsNew:          true,
		}
		if err := r.store.UpsertTool(ctx, tool); err != nil {
			return "", err
		}
		return outcomeInserted, nil
	}

	if existing.ConfigHash == norm.ConfigHash {
		return outcomeUnchanged, nil
	}

	if isReadOnly {
		conflict := catalog.ConflictAvailable
		if nameConflict {
			conflict = catalog.ConflictConflict
		}
		if err := r.store.MarkToolPendingUpdate(ctx, existing.ID, norm.ConfigJSON, norm.ConfigHash, conflict); err != nil {
			return "", err
		}
		return outcomePending, nil
	}

	conflict := catalog.ConflictNone
	if nameConflict {
		conflict = catalog.ConflictConflict
	}
	updated := *existing
	updated.Name = name
	updated.Description = norm.Description
	updated.Command = norm.Command
	updated.Args = norm.Args
	updated.Env = norm.Env
	updated.Capabilities = norm.Capabilities
	updated.EnvConfig = toCatalogEnvConfig(norm.EnvConfig)
	updated.ConfigJSON = norm.ConfigJSON
	updated.ConfigHash = norm.ConfigHash
	updated.PendingConfigJSON = nil
	updated.PendingConfigHash = nil
	updated.ConflictStatus = conflict
	if err := r.store.UpsertTool(ctx, &updated); err != nil {
		return "", err
	}
	return outcomeUpdated, nil
}

// toCatalogEnvConfig converts manifest.EnvConfigEntry (the manifest
// layer's wire type) into catalog.EnvConfigEntry (the storage layer's
// type) — kept as distinct types so catalog never imports manifest.
func toCatalogEnvConfig(ec []manifest.EnvConfigEntry) []catalog.EnvConfigEntry {
	if ec == nil {
		return nil
	}
	out := make([]catalog.EnvConfigEntry, len(ec))
	for i, e := range ec {
		out[i] = catalog.EnvConfigEntry{Key: e.Key, Required: e.Required}
	}
	return out
}

// ApplyPending parses a tool's pending config, re-normalizes it (catching
// a malformed pending as Validation), and promotes it to active.
func (r *Reconciler) ApplyPending(ctx context.Context, toolID string) error {
	tool, err := r.store.GetTool(ctx, toolID)
	if err != nil {
		return err
	}
	if !tool.HasPending() {
		return mcperr.New(mcperr.Validation, "no pending config to apply")
	}

	norm, err := manifest.NormalizeJSONText(tool.Name, *tool.PendingConfigJSON)
	if err != nil {
		return err
	}

	updated := *tool
	updated.Description = norm.Description
	updated.Command = norm.Command
	updated.Args = norm.Args
	updated.Env = norm.Env
	updated.Capabilities = norm.Capabilities
	updated.EnvConfig = toCatalogEnvConfig(norm.EnvConfig)
	updated.ConfigJSON = norm.ConfigJSON
	updated.ConfigHash = norm.ConfigHash
	updated.PendingConfigJSON = nil
	updated.PendingConfigHash = nil
	updated.ConflictStatus = catalog.ConflictNone
	return r.store.UpsertTool(ctx, &updated)
}

// ResolveConflict implements resolve_conflict: "update" applies the
// pending config, "keep" discards it, anything else is a validation error.
func (r *Reconciler) ResolveConflict(ctx context.Context, toolID, action string) error {
	switch action {
	case "update":
		return r.ApplyPending(ctx, toolID)
	case "keep":
		return r.store.ClearPendingUpdate(ctx, toolID)
	default:
		return mcperr.New(mcperr.Validation, "invalid action")
	}
}

const orphanMessage = "cloud subscription removed"

func (r *Reconciler) emitOrphan(toolID string) {
	r.emitter.Emit(toolID, "event", orphanMessage)
}
