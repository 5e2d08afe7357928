package reconcile

import (
	"context"
	"time"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/manifest"
)

// SyncCloudSubscriptions refreshes the cloud source: a distinct entry
// point from Sync because the cloud wire shape is a list of
// subscriptions wrapping market tools, not a bare mcpServers map.
// New tools are inserted as "pending" (never runnable until an operator
// supplies required env), and after every subscription is processed any
// previously-known cloud tool whose identifier was not seen this round
// is swept to "orphaned".
func (r *Reconciler) SyncCloudSubscriptions(ctx context.Context, sourceID, authToken string) (*Result, error) {
	source, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Kind != catalog.SourceCloud {
		return nil, errNotCloudSource(sourceID)
	}

	if err := r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceSyncing, nil); err != nil {
		return nil, err
	}

	subs, err := manifest.FetchCloudSubscriptions(ctx, r.CloudBaseURL(), authToken)
	if err != nil {
		_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
		return nil, err
	}

	result := &Result{}
	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		identifier := sub.Tool.Identifier
		seen[identifier] = true

		norm, err := manifest.NormalizeCloudTool(sub.Tool)
		if err != nil {
			_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
			return nil, err
		}
		out, err := r.applyEntry(ctx, source, sub.Tool.Name, &identifier, norm, catalog.ToolPending)
		if err != nil {
			_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
			return nil, err
		}
		tally(result, out)
	}

	orphaned, err := r.sweepOrphans(ctx, source.ID, seen)
	if err != nil {
		_ = r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceError, nil)
		return nil, err
	}
	result.Orphaned = orphaned

	now := time.Now().UTC()
	if err := r.store.UpdateSourceStatus(ctx, sourceID, catalog.SourceActive, &now); err != nil {
		return nil, err
	}
	return result, nil
}

// sweepOrphans transitions every cloud tool under sourceID whose
// identifier was not in seen to status orphaned.
func (r *Reconciler) sweepOrphans(ctx context.Context, sourceID string, seen map[string]bool) (int, error) {
	tools, err := r.store.ListTools(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	msg := orphanMessage
	for _, t := range tools {
		if t.SourceID != sourceID {
			continue
		}
		if t.Identifier == nil {
			continue
		}
		if seen[*t.Identifier] {
			continue
		}
		if t.Status == catalog.ToolOrphaned {
			continue
		}
		if err := r.store.SetToolStatus(ctx, t.ID, catalog.ToolOrphaned, nil, &msg); err != nil {
			return count, err
		}
		r.emitOrphan(t.ID)
		count++
	}
	return count, nil
}
