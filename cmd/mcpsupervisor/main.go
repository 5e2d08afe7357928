// Command mcpsupervisor wires the catalog, reconciler, supervisor, and
// log fabric together behind the command facade and serves its HTTP
// surface.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/facade"
	"github.com/pocketomega/mcp-supervisor/internal/httpapi"
	"github.com/pocketomega/mcp-supervisor/internal/logfabric"
	"github.com/pocketomega/mcp-supervisor/internal/reconcile"
	"github.com/pocketomega/mcp-supervisor/internal/supervisor"
	"github.com/pocketomega/mcp-supervisor/pkg/config"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║            mcp-supervisor             ║")
	fmt.Println("║  tool catalog · process supervisor    ║")
	fmt.Println("╚═══════════════════════════════════════╝")

	ctx := context.Background()

	dbPath := config.ResolveDBPath()
	store, err := catalog.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("❌ Failed to open catalog at %s: %v", dbPath, err)
	}
	defer store.Close()
	fmt.Printf("🗄️  Catalog: %s\n", dbPath)

	if _, err := store.EnsureLocalSource(ctx, config.AppName()); err != nil {
		log.Fatalf("❌ Failed to provision local source: %v", err)
	}

	cloudBaseURL := config.ResolveCloudBaseURL()
	if _, err := store.EnsureCloudSource(ctx, cloudBaseURL); err != nil {
		log.Fatalf("❌ Failed to provision cloud source: %v", err)
	}
	fmt.Printf("☁️  Cloud base URL: %s\n", cloudBaseURL)

	logs := logfabric.New()
	rec := reconcile.New(store, cloudBaseURL, logs)
	sup := supervisor.New(store, logs)
	f := facade.New(store, rec, sup, logs)

	server := httpapi.NewServer(f)

	addr := fmt.Sprintf(":%d", config.ResolvePort())
	fmt.Printf("🌐 Listening on %s\n", addr)
	if err := server.Start(addr); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
