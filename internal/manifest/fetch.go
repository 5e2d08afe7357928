package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

// httpClient is shared by every remote fetch in this package. A generous
// but finite timeout — an idiomatic http.Client in production Go code is
// never left at its zero-value (infinite) timeout.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// ExpandHome replaces a leading "~" with the HOME environment variable's
// value. Local sources store their manifest path with "~" unexpanded.
func ExpandHome(path string) string {
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

// FetchLocal reads and parses a local manifest file.
func FetchLocal(path string) (*File, error) {
	resolved := ExpandHome(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, fmt.Errorf("read manifest %s: %w", resolved, err))
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, fmt.Errorf("parse manifest %s: %w", resolved, err))
	}
	return &f, nil
}

// FetchHTTP issues a GET against url, optionally with Bearer auth, and
// parses the response as a manifest File. Any non-2xx status is a
// Network error.
func FetchHTTP(ctx context.Context, url, authToken string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Network, err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mcperr.Newf(mcperr.Network, "GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Network, err)
	}
	var f File
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, mcperr.Wrap(mcperr.Network, fmt.Errorf("parse manifest from %s: %w", url, err))
	}
	return &f, nil
}

// FetchCloudSubscriptions calls GET <base>/api/v1/mcp/subscriptions with
// an optional Bearer token and returns the decoded subscription list.
func FetchCloudSubscriptions(ctx context.Context, baseURL, authToken string) ([]CloudSubscription, error) {
	url := strings.TrimRight(baseURL, "/") + "/api/v1/mcp/subscriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Network, err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mcperr.Newf(mcperr.Network, "GET %s: status %d", url, resp.StatusCode)
	}

	var subs []CloudSubscription
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, mcperr.Wrap(mcperr.Network, fmt.Errorf("parse subscriptions from %s: %w", url, err))
	}
	return subs, nil
}
