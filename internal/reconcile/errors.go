package reconcile

import "github.com/pocketomega/mcp-supervisor/internal/mcperr"

func errNotCloudSource(sourceID string) error {
	return mcperr.Newf(mcperr.Validation, "source %s is not a cloud source", sourceID)
}
