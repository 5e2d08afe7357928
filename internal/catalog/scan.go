package catalog

import (
	"database/sql"
	"encoding/json"
	"time"
)

const sourceColumns = "id, name, kind, path_or_url, trust, status, last_synced_at, read_only, created_at, updated_at"

const toolColumns = "id, source_id, identifier, name, description, command, args, env, capabilities, " +
	"status, ping_ms, last_error, config_json, config_hash, " +
	"pending_config_json, pending_config_hash, conflict_status, read_only, is_new, env_config, created_at, updated_at"

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSource(r scanner) (*Source, error) {
	var src Source
	var kind, trust, status string
	var lastSynced sql.NullString
	var readOnly int
	var createdAt, updatedAt string

	if err := r.Scan(&src.ID, &src.Name, &kind, &src.PathOrURL, &trust, &status,
		&lastSynced, &readOnly, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	src.Kind = SourceKind(kind)
	src.Trust = TrustLevel(trust)
	src.Status = SourceStatus(status)
	src.ReadOnly = readOnly != 0
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	if lastSynced.Valid {
		t := parseTime(lastSynced.String)
		src.LastSyncedAt = &t
	}
	return &src, nil
}

func scanTool(r scanner) (*Tool, error) {
	var t Tool
	var identifier, command, lastError, pendingJSON, pendingHash sql.NullString
	var argsJSON, envJSON, capsJSON, envConfigJSON string
	var status, conflict string
	var pingMS sql.NullInt64
	var readOnly, isNew int
	var createdAt, updatedAt string

	if err := r.Scan(&t.ID, &t.SourceID, &identifier, &t.Name, &t.Description, &command, &argsJSON, &envJSON, &capsJSON,
		&status, &pingMS, &lastError, &t.ConfigJSON, &t.ConfigHash,
		&pendingJSON, &pendingHash, &conflict, &readOnly, &isNew, &envConfigJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Status = ToolStatus(status)
	t.ConflictStatus = ConflictStatus(conflict)
	t.ReadOnly = readOnly != 0
	t.IsNew = isNew != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	if identifier.Valid {
		v := identifier.String
		t.Identifier = &v
	}
	if command.Valid {
		v := command.String
		t.Command = &v
	}
	if lastError.Valid {
		v := lastError.String
		t.LastError = &v
	}
	if pendingJSON.Valid {
		v := pendingJSON.String
		t.PendingConfigJSON = &v
	}
	if pendingHash.Valid {
		v := pendingHash.String
		t.PendingConfigHash = &v
	}
	if pingMS.Valid {
		v := int(pingMS.Int64)
		t.PingMS = &v
	}

	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &t.Args)
	}
	if envJSON != "" {
		_ = json.Unmarshal([]byte(envJSON), &t.Env)
	}
	if capsJSON != "" {
		_ = json.Unmarshal([]byte(capsJSON), &t.Capabilities)
	}
	if envConfigJSON != "" {
		_ = json.Unmarshal([]byte(envConfigJSON), &t.EnvConfig)
	}
	return &t, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeToolLists(t *Tool) (argsJSON, envJSON, capsJSON, envConfigJSON string, err error) {
	a, err := json.Marshal(t.Args)
	if err != nil {
		return "", "", "", "", err
	}
	e, err := encodeEnv(t.Env)
	if err != nil {
		return "", "", "", "", err
	}
	c, err := json.Marshal(t.Capabilities)
	if err != nil {
		return "", "", "", "", err
	}
	envConfig := t.EnvConfig
	if envConfig == nil {
		envConfig = []EnvConfigEntry{}
	}
	ec, err := json.Marshal(envConfig)
	if err != nil {
		return "", "", "", "", err
	}
	return string(a), e, string(c), string(ec), nil
}

func encodeEnv(env map[string]string) (string, error) {
	if env == nil {
		env = map[string]string{}
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
