package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"lmp-gridmap/internal/store"
)

// export-snapshot copies nodes and price records from PostgreSQL into a
// snapshot file the API and CLI can serve without a database.
func main() {
	var (
		outputPath = flag.String("output", "./data/snapshot.json", "Output file path")
		market     = flag.String("market", "", "Only export this market (default: all)")
		days       = flag.Int("days", 7, "Number of days to look back")
		until      = flag.String("until", "", "End of the window, RFC3339 (default: now, truncated to the hour)")
		seedFile   = flag.String("seed", "", "Existing snapshot whose nodes are kept when missing from the database")
	)
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	end := time.Now().UTC().Truncate(time.Hour)
	if *until != "" {
		t, err := time.Parse(time.RFC3339, *until)
		if err != nil {
			log.Fatalf("Invalid --until: %v", err)
		}
		end = t.UTC()
	}
	start := end.AddDate(0, 0, -*days)

	ctx := context.Background()
	pg, err := store.OpenPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pg.Close()

	fmt.Printf("Exporting %s..%s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))

	nodes, err := pg.ListActiveNodes(ctx, *market)
	if err != nil {
		log.Fatalf("Failed to list nodes: %v", err)
	}
	records, err := pg.Records(ctx, start, end, *market)
	if err != nil {
		log.Fatalf("Failed to read records: %v", err)
	}
	fmt.Printf("Found %d nodes and %d records\n", len(nodes), len(records))

	snap := &store.Snapshot{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Records:   records,
	}
	known := map[string]bool{}
	for _, n := range nodes {
		known[n.Code] = true
		snap.Nodes = append(snap.Nodes, store.SnapshotNode{Node: n})
	}

	// Keep seed nodes the database no longer lists so older records still join.
	if *seedFile != "" {
		if seed, err := store.LoadSnapshotFile(*seedFile); err == nil {
			kept := 0
			for _, n := range seed.Nodes {
				if !known[n.Code] {
					snap.Nodes = append(snap.Nodes, n)
					known[n.Code] = true
					kept++
				}
			}
			fmt.Printf("Kept %d nodes from seed file\n", kept)
		} else {
			fmt.Printf("  Warning: could not read seed file: %v\n", err)
		}
	}

	if err := store.SaveSnapshotFile(snap, *outputPath); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}
	fmt.Printf("Saved %d nodes and %d records to %s\n", len(snap.Nodes), len(snap.Records), *outputPath)
}
