// Package facade is the thin translation layer between external
// operations (the HTTP surface) and the core components (catalog,
// reconcile, supervisor, logfabric). It validates request shape,
// orchestrates the right core calls, and returns errors whose string
// form is the user-visible "<kind>: <detail>" line.
package facade

import (
	"context"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/logfabric"
	"github.com/pocketomega/mcp-supervisor/internal/manifest"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
	"github.com/pocketomega/mcp-supervisor/internal/reconcile"
	"github.com/pocketomega/mcp-supervisor/internal/supervisor"
)

// Facade wires together the four core components and exposes the
// operation set the HTTP surface (or any other adapter) calls.
type Facade struct {
	Store      *catalog.Store
	Reconciler *reconcile.Reconciler
	Supervisor *supervisor.Supervisor
	Logs       *logfabric.Fabric
}

// New builds a Facade over already-constructed core components.
func New(store *catalog.Store, rec *reconcile.Reconciler, sup *supervisor.Supervisor, logs *logfabric.Fabric) *Facade {
	return &Facade{Store: store, Reconciler: rec, Supervisor: sup, Logs: logs}
}

// ── Sources ──

// ListSources returns every configured source.
func (f *Facade) ListSources(ctx context.Context) ([]*catalog.Source, error) {
	return f.Store.ListSources(ctx)
}

// CreateSourceInput is the validated shape of a POST /mcp/sources body.
type CreateSourceInput struct {
	Name      string
	Kind      string
	PathOrURL string
	Trust     string
	ReadOnly  bool
}

// CreateSource inserts a new manifest source after basic validation.
func (f *Facade) CreateSource(ctx context.Context, in CreateSourceInput) (*catalog.Source, error) {
	if in.Name == "" {
		return nil, mcperr.New(mcperr.Validation, "name is required")
	}
	kind := catalog.SourceKind(in.Kind)
	switch kind {
	case catalog.SourceLocal, catalog.SourceCloud, catalog.SourceModelScope, catalog.SourceGitHub, catalog.SourceURL:
	default:
		return nil, mcperr.Newf(mcperr.Validation, "unknown source kind %q", in.Kind)
	}
	if in.PathOrURL == "" {
		return nil, mcperr.New(mcperr.Validation, "path_or_url is required")
	}
	trust := catalog.TrustLevel(in.Trust)
	switch trust {
	case catalog.TrustOfficial, catalog.TrustCommunity, catalog.TrustPrivate:
	case "":
		trust = catalog.TrustCommunity
	default:
		return nil, mcperr.Newf(mcperr.Validation, "unknown trust level %q", in.Trust)
	}

	src := &catalog.Source{
		Name:      in.Name,
		Kind:      kind,
		PathOrURL: in.PathOrURL,
		Trust:     trust,
		Status:    catalog.SourceActive,
		ReadOnly:  in.ReadOnly,
	}
	if err := f.Store.InsertSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// SyncSource fetches and reconciles sourceID's manifest. Cloud sources
// must instead call SyncCloudSubscriptions.
func (f *Facade) SyncSource(ctx context.Context, sourceID, authToken string) (*reconcile.Result, error) {
	return f.Reconciler.Sync(ctx, sourceID, authToken)
}

// SyncCloudSubscriptions refreshes the cloud source's subscription list.
func (f *Facade) SyncCloudSubscriptions(ctx context.Context, sourceID, authToken string) (*reconcile.Result, error) {
	return f.Reconciler.SyncCloudSubscriptions(ctx, sourceID, authToken)
}

// SetCloudBaseURL hot-swaps the base URL the next cloud sync will use.
func (f *Facade) SetCloudBaseURL(ctx context.Context, sourceID, baseURL string) error {
	if baseURL == "" {
		return mcperr.New(mcperr.Validation, "base_url is required")
	}
	source, err := f.Store.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source.Kind != catalog.SourceCloud {
		return mcperr.New(mcperr.Validation, "source is not a cloud source")
	}
	f.Reconciler.SetCloudBaseURL(baseURL)
	return nil
}

// ── Tools ──

// ListTools returns every known tool.
func (f *Facade) ListTools(ctx context.Context) ([]*catalog.Tool, error) {
	return f.Store.ListTools(ctx)
}

// GetTool returns one tool by id.
func (f *Facade) GetTool(ctx context.Context, toolID string) (*catalog.Tool, error) {
	return f.Store.GetTool(ctx, toolID)
}

// ImportManifest reconciles a raw manifest payload against sourceID,
// defaulting to the local source when sourceID is empty — the "import"
// operation's body carries the manifest itself rather than pointing at
// a fetchable location.
func (f *Facade) ImportManifest(ctx context.Context, sourceID string, file *manifest.File) (*reconcile.Result, error) {
	if file == nil || len(file.MCPServers) == 0 {
		return nil, mcperr.New(mcperr.Validation, "config.mcpServers must be a non-empty object")
	}
	if sourceID == "" {
		local, err := f.Store.FindSourceByKind(ctx, catalog.SourceLocal)
		if err != nil {
			return nil, err
		}
		if local == nil {
			return nil, mcperr.New(mcperr.NotFound, "no local source provisioned")
		}
		sourceID = local.ID
	}
	return f.Reconciler.ImportManifest(ctx, sourceID, file)
}

// StartTool validates preconditions and spawns toolID's child process.
func (f *Facade) StartTool(ctx context.Context, toolID string) error {
	return f.Supervisor.Start(ctx, toolID)
}

// StopTool stops toolID's child process, idempotently.
func (f *Facade) StopTool(ctx context.Context, toolID string) error {
	return f.Supervisor.Stop(ctx, toolID)
}

// UpdateToolEnv replaces toolID's env map and clears its is_new flag.
func (f *Facade) UpdateToolEnv(ctx context.Context, toolID string, env map[string]string) error {
	return f.Store.UpdateToolEnv(ctx, toolID, env)
}

// ApplyPendingConfig implements PATCH .../config: apply_pending must be
// explicitly true, matching the original's validation-error wording for
// any other value.
func (f *Facade) ApplyPendingConfig(ctx context.Context, toolID string, applyPending bool) error {
	if !applyPending {
		return mcperr.New(mcperr.Validation, "apply_pending must be true")
	}
	return f.Reconciler.ApplyPending(ctx, toolID)
}

// ResolveConflict implements resolve_conflict: action must be "update"
// or "keep".
func (f *Facade) ResolveConflict(ctx context.Context, toolID, action string) error {
	return f.Reconciler.ResolveConflict(ctx, toolID, action)
}

// ── Logs ──

// GetLogs returns the ring snapshot for toolID.
func (f *Facade) GetLogs(toolID string) []logfabric.LogEntry {
	return f.Logs.Logs(toolID)
}

// ClearLogs resets toolID's ring without disturbing live subscriptions.
func (f *Facade) ClearLogs(toolID string) {
	f.Logs.ClearLogs(toolID)
}
