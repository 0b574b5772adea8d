// clean-db deletes match records that have not been updated within the
// retention window. It uses the same store configuration as the monitor.
// Usage:
//
//	go run ./cmd/clean-db -config configs/monitor.yaml
//	# or, with a one-off window
//	STORE_DRIVER=postgres STORE_DSN='postgres://...' ./clean-db -retention 72h
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	retention := flag.Duration("retention", 0, "Delete records older than this. 0 = maintenance.retention from config")
	dryRun := flag.Bool("dry-run", false, "Only report store stats")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "memory" {
		log.Fatal("A persistent storage driver is required (set storage.driver or STORE_DRIVER)")
	}
	if *retention <= 0 {
		*retention = cfg.Maintenance.Retention
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	before, err := store.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	log.Printf("Store has %d records (%d live, %d upcoming)", before.Total, before.Live, before.Upcoming)
	if *dryRun {
		return
	}

	n, err := store.DeleteOlderThan(ctx, *retention)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	log.Printf("Done. Deleted %d records older than %s.", n, *retention)
}
