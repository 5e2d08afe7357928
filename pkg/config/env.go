// Package config loads process configuration: a .env file found by a
// fixed search order, plus typed resolvers for this program's
// environment variables.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file.
//
// Search order (stops at the first file found):
//  1. Explicit paths passed as arguments (legacy / test use).
//  2. Directory of the running executable, walking up a few levels.
//  3. Current working directory — fallback for `go run ./cmd/...`.
//
// If no .env is found anywhere, the program continues with system env vars.
func LoadEnv(paths ...string) {
	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			log.Printf("[Config] No .env file at specified path(s), using system environment variables")
		}
		return
	}

	candidates := resolveEnvCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("[Config] Failed to load .env from %s: %v", p, err)
			} else {
				log.Printf("[Config] Loaded .env from %s", p)
			}
			return
		}
	}

	log.Printf("[Config] No .env file found (searched: %v), using system environment variables", candidates)
}

func resolveEnvCandidates() []string {
	var candidates []string
	seen := map[string]bool{}

	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		dir := filepath.Dir(exe)
		for i := 0; i <= 3; i++ {
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, ".env"))
	}

	return candidates
}

// appName names the per-user config directory: the local source's
// mcp.json and the default SQLite file both live under ~/.config/<app>/.
const appName = "mcp-supervisor"

// defaultCloudBaseURL is used when NEXT_PUBLIC_API_BASE_URL is unset.
const defaultCloudBaseURL = "http://127.0.0.1:8000"

const defaultPort = 3000

// ResolveDBPath resolves DESKTOP_DB_PATH (a plain file path, a
// "sqlite:"-prefixed URL, or ":memory:"), defaulting to
// ~/.config/<app>/mcp.db when unset. "~" expansion happens later, in
// catalog.Open (its resolveDSN step), against HOME — this resolver
// only picks the string, it does not expand it, so ":memory:" and
// "sqlite:" URLs pass through unmolested.
func ResolveDBPath() string {
	if v := os.Getenv("DESKTOP_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join("~", ".config", appName, "mcp.db")
}

// ResolveLocalManifestPath returns the default local source's
// path_or_url: ~/.config/<app>/mcp.json.
func ResolveLocalManifestPath() string {
	return filepath.Join("~", ".config", appName, "mcp.json")
}

// ResolveCloudBaseURL resolves NEXT_PUBLIC_API_BASE_URL, defaulting to
// http://127.0.0.1:8000.
func ResolveCloudBaseURL() string {
	if v := os.Getenv("NEXT_PUBLIC_API_BASE_URL"); v != "" {
		return v
	}
	return defaultCloudBaseURL
}

// ResolvePort resolves PORT, defaulting to 3000. A malformed PORT value
// is logged and the default is used rather than failing startup outright.
func ResolvePort() int {
	v := strings.TrimSpace(os.Getenv("PORT"))
	if v == "" {
		return defaultPort
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[Config] invalid PORT=%q, using default %d", v, defaultPort)
		return defaultPort
	}
	return n
}

// AppName returns the application name used to namespace config-dir paths.
func AppName() string {
	return appName
}
