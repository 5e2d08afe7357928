// Package manifest holds the wire types for the two shapes this system
// ingests — the local/generic-HTTP "mcpServers" manifest and the cloud
// subscription list — plus the fetch and canonicalization logic that
// turns either into the config value the reconciler hashes and stores.
package manifest

import "encoding/json"

// File is the top-level JSON document: { "mcpServers": { name: entry } }.
type File struct {
	MCPServers map[string]Entry `json:"mcpServers"`
}

// Entry is one manifest entry. Known fields are pulled out explicitly;
// every other key in the source object is preserved verbatim in Extra so
// canonicalization can pass it through without knowing its shape.
type Entry struct {
	Command      *string          `json:"-"`
	Args         []string         `json:"-"`
	Env          map[string]string `json:"-"`
	Description  *string          `json:"-"`
	Capabilities []string         `json:"-"`
	EnvConfig    []EnvConfigEntry `json:"-"`
	Extra        map[string]any   `json:"-"`
}

// EnvConfigEntry mirrors catalog.EnvConfigEntry without importing catalog
// from this package — the manifest layer must not depend on the storage
// layer, only the other way around.
type EnvConfigEntry struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
}

var knownEntryKeys = map[string]bool{
	"command": true, "args": true, "env": true, "description": true,
	"capabilities": true, "env_config": true,
}

// UnmarshalJSON splits the raw object into known fields and an Extra
// passthrough bag of everything else.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["command"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		e.Command = &s
	}
	if v, ok := raw["args"]; ok {
		if err := json.Unmarshal(v, &e.Args); err != nil {
			return err
		}
	}
	if v, ok := raw["env"]; ok {
		if err := json.Unmarshal(v, &e.Env); err != nil {
			return err
		}
	}
	if v, ok := raw["description"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		e.Description = &s
	}
	if v, ok := raw["capabilities"]; ok {
		if err := json.Unmarshal(v, &e.Capabilities); err != nil {
			return err
		}
	}
	if v, ok := raw["env_config"]; ok {
		if err := json.Unmarshal(v, &e.EnvConfig); err != nil {
			return err
		}
	}

	e.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		if knownEntryKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		e.Extra[k] = val
	}
	return nil
}

// MarshalJSON re-flattens Extra alongside the known fields, so an Entry
// round-trips through JSON the same shape it was read in.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+6)
	for k, v := range e.Extra {
		out[k] = v
	}
	if e.Command != nil {
		out["command"] = *e.Command
	}
	if e.Args != nil {
		out["args"] = e.Args
	}
	if e.Env != nil {
		out["env"] = e.Env
	}
	if e.Description != nil {
		out["description"] = *e.Description
	}
	if e.Capabilities != nil {
		out["capabilities"] = e.Capabilities
	}
	if e.EnvConfig != nil {
		out["env_config"] = e.EnvConfig
	}
	return json.Marshal(out)
}

// CloudSubscription is one element of the cloud subscriptions list.
type CloudSubscription struct {
	ID                 string     `json:"id"`
	MarketToolID        string     `json:"market_tool_id"`
	ConfigHashSnapshot *string    `json:"config_hash_snapshot,omitempty"`
	Tool               CloudTool  `json:"tool"`
}

// CloudTool is the market-tool payload nested in a subscription.
type CloudTool struct {
	ID              string              `json:"id"`
	Identifier      string              `json:"identifier"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	AvatarURL       *string             `json:"avatar_url,omitempty"`
	Category        *string             `json:"category,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
	Author          *string             `json:"author,omitempty"`
	IsOfficial      *bool               `json:"is_official,omitempty"`
	InstallManifest CloudInstallManifest `json:"install_manifest"`
}

// CloudInstallManifest is the install recipe for a cloud-sourced tool.
type CloudInstallManifest struct {
	Runtime   *string          `json:"runtime,omitempty"`
	Command   string           `json:"command"`
	Args      []string         `json:"args,omitempty"`
	EnvConfig []EnvConfigEntry `json:"env_config,omitempty"`
}
