package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

// Store is the durable Source/Tool layer. Correctness under concurrent
// callers is delegated to the underlying *sql.DB connection pool and
// SQLite's own row-level locking — the Store itself holds no package
// level lock, matching the "no long-held locks span a suspension point"
// rule from the concurrency model.
type Store struct {
	db *sql.DB
}

// Open resolves path (a plain file path, a "sqlite:" URL, or ":memory:")
// into a DSN, opens the database, applies PRAGMAs, and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn, err := resolveDSN(path)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, fmt.Errorf("open sqlite %s: %w", dsn, err))
	}
	db.SetMaxOpenConns(5)

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func resolveDSN(path string) (string, error) {
	if path == ":memory:" {
		// A named shared in-memory database so every pooled connection
		// sees the same tables; the plain ":memory:" DSN gives each
		// connection its own private database, which breaks under a >1
		// connection pool. The name is randomized per Open call so
		// independent in-memory Stores (e.g. one per test) never collide
		// on SQLite's process-wide shared-cache namespace.
		return fmt.Sprintf("file:mcpsupervisor-%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString()), nil
	}
	if strings.HasPrefix(path, "sqlite:") {
		path = strings.TrimPrefix(path, "sqlite:")
	}
	if path == "" {
		return "", fmt.Errorf("empty db path")
	}
	path = expandHome(path)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}
	return "file:" + path + "?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", nil
}

// expandHome replaces a leading "~" with the HOME environment variable's
// value, the same rule used for a local source's path_or_url, applied
// here too since DESKTOP_DB_PATH defaults to a "~/.config/<app>/mcp.db"
// path.
func expandHome(path string) string {
	if path == "~" {
		if home := os.Getenv("HOME"); home != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nowRFC3339() time.Time {
	return time.Now().UTC()
}

// ---- Sources ----

// EnsureLocalSource idempotently provisions the single local-kind source.
func (s *Store) EnsureLocalSource(ctx context.Context, appName string) (*Source, error) {
	existing, err := s.FindSourceByKind(ctx, SourceLocal)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	src := &Source{
		Name:      "Local",
		Kind:      SourceLocal,
		PathOrURL: fmt.Sprintf("~/.config/%s/mcp.json", appName),
		Trust:     TrustPrivate,
		Status:    SourceActive,
		ReadOnly:  false,
	}
	return src, s.InsertSource(ctx, src)
}

// EnsureCloudSource idempotently provisions the single cloud-kind source.
func (s *Store) EnsureCloudSource(ctx context.Context, baseURL string) (*Source, error) {
	existing, err := s.FindSourceByKind(ctx, SourceCloud)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	src := &Source{
		Name:      "Cloud",
		Kind:      SourceCloud,
		PathOrURL: baseURL,
		Trust:     TrustOfficial,
		Status:    SourceActive,
		ReadOnly:  true,
	}
	return src, s.InsertSource(ctx, src)
}

// InsertSource generates an id if absent and inserts the row.
func (s *Store) InsertSource(ctx context.Context, src *Source) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := nowRFC3339()
	src.CreatedAt, src.UpdatedAt = now, now
	if src.Status == "" {
		src.Status = SourceActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mcp_sources (id, name, kind, path_or_url, trust, status, last_synced_at, read_only, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, string(src.Kind), src.PathOrURL, string(src.Trust), string(src.Status),
		nullableTime(src.LastSyncedAt), boolToInt(src.ReadOnly), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, fmt.Errorf("insert source: %w", err))
	}
	return nil
}

// ListSources returns every source.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM mcp_sources ORDER BY created_at ASC`)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.Storage, err)
		}
		out = append(out, src)
	}
	return out, mcperr.Wrap(mcperr.Storage, rows.Err())
}

// GetSource fetches a source by id, or a NotFound error.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM mcp_sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, mcperr.Newf(mcperr.NotFound, "source %s", id)
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	return src, nil
}

// FindSourceByKind returns the first source of the given kind, or nil if none.
func (s *Store) FindSourceByKind(ctx context.Context, kind SourceKind) (*Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM mcp_sources WHERE kind = ? LIMIT 1`, string(kind))
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	return src, nil
}

// UpdateSourceStatus sets status and, when non-nil, last_synced_at.
func (s *Store) UpdateSourceStatus(ctx context.Context, id string, status SourceStatus, lastSyncedAt *time.Time) error {
	now := nowRFC3339()
	var err error
	if lastSyncedAt != nil {
		_, err = s.db.ExecContext(ctx, `UPDATE mcp_sources SET status = ?, last_synced_at = ?, updated_at = ? WHERE id = ?`,
			string(status), lastSyncedAt.Format(time.RFC3339), now.Format(time.RFC3339), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE mcp_sources SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), now.Format(time.RFC3339), id)
	}
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// ---- Tools ----

// ListTools returns every tool.
func (s *Store) ListTools(ctx context.Context) ([]*Tool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+toolColumns+` FROM mcp_tools ORDER BY created_at ASC`)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	defer rows.Close()

	var out []*Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.Storage, err)
		}
		out = append(out, tool)
	}
	return out, mcperr.Wrap(mcperr.Storage, rows.Err())
}

// GetTool fetches a tool by id.
func (s *Store) GetTool(ctx context.Context, id string) (*Tool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM mcp_tools WHERE id = ?`, id)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, mcperr.Newf(mcperr.NotFound, "tool %s", id)
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	return tool, nil
}

// GetToolBySourceName looks up a tool by (source_id, name).
func (s *Store) GetToolBySourceName(ctx context.Context, sourceID, name string) (*Tool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM mcp_tools WHERE source_id = ? AND name = ?`, sourceID, name)
	return scanToolOrNil(row)
}

// GetToolBySourceIdentifier looks up a tool by (source_id, identifier).
func (s *Store) GetToolBySourceIdentifier(ctx context.Context, sourceID, identifier string) (*Tool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM mcp_tools WHERE source_id = ? AND identifier = ?`, sourceID, identifier)
	return scanToolOrNil(row)
}

func scanToolOrNil(row *sql.Row) (*Tool, error) {
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	return tool, nil
}

// GetPendingConfigJSON returns the tool's pending config text, or "" if none.
func (s *Store) GetPendingConfigJSON(ctx context.Context, id string) (string, error) {
	var pending sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT pending_config_json FROM mcp_tools WHERE id = ?`, id).Scan(&pending)
	if err == sql.ErrNoRows {
		return "", mcperr.Newf(mcperr.NotFound, "tool %s", id)
	}
	if err != nil {
		return "", mcperr.Wrap(mcperr.Storage, err)
	}
	return pending.String, nil
}

// HasNameConflict reports whether a tool named name exists in a
// local-kind source other than excludeSourceID.
func (s *Store) HasNameConflict(ctx context.Context, name, excludeSourceID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mcp_tools t
		JOIN mcp_sources src ON src.id = t.source_id
		WHERE t.name = ? AND src.kind = ? AND t.source_id != ?`,
		name, string(SourceLocal), excludeSourceID).Scan(&count)
	if err != nil {
		return false, mcperr.Wrap(mcperr.Storage, err)
	}
	return count > 0, nil
}

// UpsertTool locates the tool by (source_id, identifier) when Identifier
// is set, else by (source_id, name), and performs an insert or full
// update accordingly. An id is generated when absent.
func (s *Store) UpsertTool(ctx context.Context, t *Tool) error {
	var existing *Tool
	var err error
	if t.Identifier != nil && *t.Identifier != "" {
		existing, err = s.GetToolBySourceIdentifier(ctx, t.SourceID, *t.Identifier)
	} else {
		existing, err = s.GetToolBySourceName(ctx, t.SourceID, t.Name)
	}
	if err != nil {
		return err
	}

	now := nowRFC3339()
	t.UpdatedAt = now
	if existing == nil {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.CreatedAt = now
		return s.insertTool(ctx, t)
	}

	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	return s.updateTool(ctx, t)
}

func (s *Store) insertTool(ctx context.Context, t *Tool) error {
	argsJSON, envJSON, capsJSON, envConfigJSON, err := encodeToolLists(t)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mcp_tools (
			id, source_id, identifier, name, description, command, args, env, capabilities,
			status, ping_ms, last_error, config_json, config_hash,
			pending_config_json, pending_config_hash, conflict_status, read_only, is_new, env_config,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?,?, ?,?)`,
		t.ID, t.SourceID, nullableStr(t.Identifier), t.Name, t.Description, nullableStr(t.Command), argsJSON, envJSON, capsJSON,
		string(t.Status), nullableInt(t.PingMS), nullableStr(t.LastError), t.ConfigJSON, t.ConfigHash,
		nullableStr(t.PendingConfigJSON), nullableStr(t.PendingConfigHash), string(t.ConflictStatus), boolToInt(t.ReadOnly), boolToInt(t.IsNew), envConfigJSON,
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, fmt.Errorf("insert tool: %w", err))
	}
	return nil
}

func (s *Store) updateTool(ctx context.Context, t *Tool) error {
	argsJSON, envJSON, capsJSON, envConfigJSON, err := encodeToolLists(t)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE mcp_tools SET
			identifier=?, name=?, description=?, command=?, args=?, env=?, capabilities=?,
			status=?, ping_ms=?, last_error=?, config_json=?, config_hash=?,
			pending_config_json=?, pending_config_hash=?, conflict_status=?, read_only=?, is_new=?, env_config=?,
			updated_at=?
		WHERE id=?`,
		nullableStr(t.Identifier), t.Name, t.Description, nullableStr(t.Command), argsJSON, envJSON, capsJSON,
		string(t.Status), nullableInt(t.PingMS), nullableStr(t.LastError), t.ConfigJSON, t.ConfigHash,
		nullableStr(t.PendingConfigJSON), nullableStr(t.PendingConfigHash), string(t.ConflictStatus), boolToInt(t.ReadOnly), boolToInt(t.IsNew), envConfigJSON,
		t.UpdatedAt.Format(time.RFC3339), t.ID)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, fmt.Errorf("update tool: %w", err))
	}
	return nil
}

// SetToolStatus updates status, and optionally ping_ms/error.
func (s *Store) SetToolStatus(ctx context.Context, id string, status ToolStatus, pingMS *int, errMsg *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mcp_tools SET status=?, ping_ms=?, last_error=?, updated_at=? WHERE id=?`,
		string(status), nullableInt(pingMS), nullableStr(errMsg), nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// MarkToolPendingUpdate stores a pending config+hash and sets conflict status.
func (s *Store) MarkToolPendingUpdate(ctx context.Context, id, pendingJSON, pendingHash string, conflict ConflictStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mcp_tools SET pending_config_json=?, pending_config_hash=?, conflict_status=?, updated_at=? WHERE id=?`,
		pendingJSON, pendingHash, string(conflict), nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// ClearPendingUpdate drops the pending config and resets conflict_status to none.
func (s *Store) ClearPendingUpdate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mcp_tools SET pending_config_json=NULL, pending_config_hash=NULL, conflict_status=?, updated_at=? WHERE id=?`,
		string(ConflictNone), nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// ApplyPendingUpdate promotes pending config+hash to active, clears pending,
// and sets conflict_status to none. Callers are expected to have already
// re-normalized the pending JSON (the reconciler owns that).
func (s *Store) ApplyPendingUpdate(ctx context.Context, id, newConfigJSON, newConfigHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mcp_tools SET config_json=?, config_hash=?, pending_config_json=NULL, pending_config_hash=NULL, conflict_status=?, updated_at=? WHERE id=?`,
		newConfigJSON, newConfigHash, string(ConflictNone), nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// UpdateToolEnv replaces a tool's env map and clears its is_new flag.
func (s *Store) UpdateToolEnv(ctx context.Context, id string, env map[string]string) error {
	envJSON, err := encodeEnv(env)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE mcp_tools SET env=?, is_new=0, updated_at=? WHERE id=?`,
		envJSON, nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}

// SetToolNewFlag sets or clears the is_new flag.
func (s *Store) SetToolNewFlag(ctx context.Context, id string, flag bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mcp_tools SET is_new=?, updated_at=? WHERE id=?`,
		boolToInt(flag), nowRFC3339().Format(time.RFC3339), id)
	if err != nil {
		return mcperr.Wrap(mcperr.Storage, err)
	}
	return nil
}
