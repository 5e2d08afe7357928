package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/pocketomega/mcp-supervisor/internal/hashutil"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

// Normalized is the canonical config value plus its derived fields, the
// unit the reconciler classifies and the store persists.
type Normalized struct {
	Name         string
	Description  string
	Command      *string
	Args         []string
	Env          map[string]string
	Capabilities []string
	EnvConfig    []EnvConfigEntry
	Canonical    map[string]any
	ConfigJSON   string
	ConfigHash   string
}

// Normalize builds the canonical config value for one manifest entry:
// name plus the recognized optional fields that are present plus
// env_config plus every unrecognized extra key, then hashes it. The
// "MCP tool" description fallback and the empty capabilities list apply
// only to the extracted fields, not to the canonical value. env_config
// is carried through explicitly (not left to the Extra passthrough) because it feeds the
// supervisor's required-env gate and must still participate in hashing,
// or editing it would never be detected as a config change.
func Normalize(name string, e Entry) (*Normalized, error) {
	canon := make(map[string]any, len(e.Extra)+7)
	for k, v := range e.Extra {
		canon[k] = v
	}
	canon["name"] = name
	if e.Command != nil {
		canon["command"] = *e.Command
	}
	if e.Args != nil {
		canon["args"] = toAnySlice(e.Args)
	}
	if e.Env != nil {
		canon["env"] = toAnyMap(e.Env)
	}
	if e.Description != nil {
		canon["description"] = *e.Description
	}
	description := "MCP tool"
	if e.Description != nil && *e.Description != "" {
		description = *e.Description
	}
	if e.Capabilities != nil {
		canon["capabilities"] = toAnySlice(e.Capabilities)
	}
	caps := e.Capabilities
	if caps == nil {
		caps = []string{}
	}
	if e.EnvConfig != nil {
		canon["env_config"] = envConfigToAny(e.EnvConfig)
	}

	configJSON, err := hashutil.CanonicalJSON(canon)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}
	hash, err := hashutil.Hash(canon)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err)
	}

	return &Normalized{
		Name:         name,
		Description:  description,
		Command:      e.Command,
		Args:         e.Args,
		Env:          e.Env,
		Capabilities: caps,
		EnvConfig:    e.EnvConfig,
		Canonical:    canon,
		ConfigJSON:   string(configJSON),
		ConfigHash:   hash,
	}, nil
}

// NormalizeJSONText parses a raw JSON entry (as stored in pending_config_json)
// and re-normalizes it. Used by apply_pending, which must re-run
// normalization so a malformed pending value is caught as a Validation
// error rather than silently promoted.
func NormalizeJSONText(name, raw string) (*Normalized, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, mcperr.Wrap(mcperr.Validation, fmt.Errorf("parse pending config: %w", err))
	}
	return Normalize(name, e)
}

// NormalizeCloudTool builds the canonical config value for a cloud
// subscription's tool, folding descriptive fields (category, tags,
// author, is_official, avatar_url) into the passthrough bucket so they
// ride along without dedicated columns, matching the original source's
// flattened handling of cloud-tool metadata.
func NormalizeCloudTool(ct CloudTool) (*Normalized, error) {
	extra := map[string]any{}
	if ct.Category != nil {
		extra["category"] = *ct.Category
	}
	if ct.Tags != nil {
		extra["tags"] = toAnySlice(ct.Tags)
	}
	if ct.Author != nil {
		extra["author"] = *ct.Author
	}
	if ct.IsOfficial != nil {
		extra["is_official"] = *ct.IsOfficial
	}
	if ct.AvatarURL != nil {
		extra["avatar_url"] = *ct.AvatarURL
	}

	entry := Entry{
		Command:   &ct.InstallManifest.Command,
		Args:      ct.InstallManifest.Args,
		EnvConfig: ct.InstallManifest.EnvConfig,
		Extra:     extra,
	}
	if ct.Description != "" {
		d := ct.Description
		entry.Description = &d
	}
	return Normalize(ct.Name, entry)
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func envConfigToAny(ec []EnvConfigEntry) []any {
	out := make([]any, len(ec))
	for i, e := range ec {
		out[i] = map[string]any{"key": e.Key, "required": e.Required}
	}
	return out
}
