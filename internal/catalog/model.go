// Package catalog is the durable layer for Source and Tool records: an
// embedded SQLite database reached through database/sql, with additive
// schema migrations and the upsert/classify-supporting queries the
// reconciler needs.
package catalog

import "time"

// SourceKind identifies where a Source's manifest comes from.
type SourceKind string

const (
	SourceLocal      SourceKind = "local"
	SourceCloud      SourceKind = "cloud"
	SourceModelScope SourceKind = "modelscope"
	SourceGitHub     SourceKind = "github"
	SourceURL        SourceKind = "url"
)

// TrustLevel is a Source's declared trust tier.
type TrustLevel string

const (
	TrustOfficial  TrustLevel = "official"
	TrustCommunity TrustLevel = "community"
	TrustPrivate   TrustLevel = "private"
)

// SourceStatus is a Source's lifecycle state.
type SourceStatus string

const (
	SourceActive   SourceStatus = "active"
	SourceInactive SourceStatus = "inactive"
	SourceSyncing  SourceStatus = "syncing"
	SourceError    SourceStatus = "error"
)

// Source is a manifest provider.
type Source struct {
	ID           string
	Name         string
	Kind         SourceKind
	PathOrURL    string
	Trust        TrustLevel
	Status       SourceStatus
	LastSyncedAt *time.Time
	ReadOnly     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToolStatus is a Tool's lifecycle state, driven by the supervisor and
// the cloud orphan sweep.
type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolStopped   ToolStatus = "stopped"
	ToolStarting  ToolStatus = "starting"
	ToolHealthy   ToolStatus = "healthy"
	ToolDegraded  ToolStatus = "degraded"
	ToolCrashed   ToolStatus = "crashed"
	ToolUpdating  ToolStatus = "updating"
	ToolError     ToolStatus = "error"
	ToolOrphaned  ToolStatus = "orphaned"
)

// ConflictStatus describes how a Tool's stored config relates to the
// most recently fetched manifest entry for it.
type ConflictStatus string

const (
	ConflictNone      ConflictStatus = "none"
	ConflictAvailable ConflictStatus = "update_available"
	ConflictConflict  ConflictStatus = "conflict"
)

// Tool is a tool-server definition, optionally with a running child.
type Tool struct {
	ID           string
	SourceID     string
	Identifier   *string
	Name         string
	Description  string
	Command      *string
	Args         []string
	Env          map[string]string
	Capabilities []string
	EnvConfig    []EnvConfigEntry

	Status    ToolStatus
	PingMS    *int
	LastError *string

	ConfigJSON string
	ConfigHash string

	PendingConfigJSON *string
	PendingConfigHash *string

	ConflictStatus ConflictStatus
	ReadOnly       bool
	IsNew          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPending reports whether the tool currently carries a pending config.
func (t *Tool) HasPending() bool {
	return t.PendingConfigJSON != nil && t.PendingConfigHash != nil
}

// EnvConfigEntry describes one declared environment requirement, taken
// from a manifest entry's optional "env_config" array.
type EnvConfigEntry struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
}
