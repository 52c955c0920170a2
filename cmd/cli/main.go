package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"lmp-gridmap/internal/analysis"
	"lmp-gridmap/internal/config"
	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/observability"
	"lmp-gridmap/internal/pricemap"
	"lmp-gridmap/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log.Logger = observability.NewLogger("dev", envOr("LOG_LEVEL", "warn"))

	switch os.Args[1] {
	case "grid":
		cmdGrid(os.Args[2:])
	case "map":
		cmdMap(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli grid  --snapshot data/snapshot.json --market MDA --out results/grid.geojson")
	fmt.Println("  cli map   --snapshot data/snapshot.json --timestamp 2024-07-15T14:00:00Z --datatype price --out results/map.geojson")
	fmt.Println("  cli stats --snapshot data/snapshot.json --timestamp 2024-07-15T14:00:00Z --top 10")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - --config reads the boundary and cell size from the API YAML config")
	fmt.Println("  - grid writes the un-annotated cells; map adds the hourly average per node")
}

type common struct {
	snapshot *string
	cfgPath  *string
	market   *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		snapshot: fs.String("snapshot", "data/snapshot.json", "Path to snapshot JSON (nodes + records)"),
		cfgPath:  fs.String("config", "", "Path to YAML config (optional)"),
		market:   fs.String("market", "MDA", "Market to draw"),
	}
}

// service builds a map service over the snapshot file.
func (c common) service() *pricemap.Service {
	cfg, err := config.LoadUnchecked(*c.cfgPath)
	if err != nil {
		panic(err)
	}
	boundary, err := cfg.LoadBoundary()
	if err != nil {
		panic(err)
	}
	mem, err := store.OpenSnapshot(*c.snapshot)
	if err != nil {
		panic(err)
	}
	return pricemap.NewService(mem, mem, nil, boundary, cfg.Cells)
}

func cmdGrid(args []string) {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	c := commonFlags(fs)
	outPath := fs.String("out", "results/grid.geojson", "Output GeoJSON path")
	_ = fs.Parse(args)

	cells, skipped, err := c.service().Grid(context.Background(), *c.market)
	if err != nil {
		panic(err)
	}
	writeJSON(*outPath, geo.Grid{Cells: cells, Skipped: skipped}.FeatureCollection())

	fmt.Printf("Wrote %d cells to %s\n", len(cells), *outPath)
	printSkipped(skipped)
}

func cmdMap(args []string) {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	c := commonFlags(fs)
	ts := fs.String("timestamp", "", "Hour to draw (RFC3339)")
	dataType := fs.String("datatype", "price", "price | solar_capture | wind_capture")
	outPath := fs.String("out", "results/map.geojson", "Output GeoJSON path")
	_ = fs.Parse(args)

	res := build(c, *ts, *dataType)
	writeJSON(*outPath, res.Grid().FeatureCollection())

	fmt.Printf("Wrote %d cells (%d with %s) to %s\n", res.Stats.Cells, res.Stats.WithValue, res.Field, *outPath)
	printSkipped(res.Skipped)
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	c := commonFlags(fs)
	ts := fs.String("timestamp", "", "Hour to summarize (RFC3339)")
	dataType := fs.String("datatype", "price", "price | solar_capture | wind_capture")
	top := fs.Int("top", 10, "Number of highest/lowest nodes to list")
	_ = fs.Parse(args)

	res := build(c, *ts, *dataType)
	s := res.Stats
	fmt.Printf("%s %s %s..%s\n", res.Market, res.Field, res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339))
	fmt.Printf("cells=%d with_value=%d without_value=%d skipped=%d\n", s.Cells, s.WithValue, s.WithoutValue, len(res.Skipped))
	if s.WithValue == 0 {
		return
	}
	fmt.Printf("min=%.2f p05=%.2f mean=%.2f p95=%.2f max=%.2f %s\n", *s.Min, *s.P05, *s.Mean, *s.P95, *s.Max, res.Field.Unit())

	highest, lowest := analysis.RankByValue(res.Cells, *top)
	printRanked("highest", highest)
	printRanked("lowest", lowest)
}

func build(c common, ts, dataType string) *pricemap.Result {
	if ts == "" {
		fmt.Println("--timestamp is required")
		os.Exit(2)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	field, err := model.ParseDataField(dataType)
	if err != nil {
		panic(err)
	}
	res, err := c.service().Build(context.Background(), pricemap.Request{Timestamp: t, Market: *c.market, Field: field})
	if err != nil {
		panic(err)
	}
	return res
}

func printRanked(title string, rows []analysis.RankedNode) {
	fmt.Printf("\n%s\n", title)
	fmt.Printf("%-4s %-8s %-24s %-10s\n", "rank", "node_id", "code", "value")
	for i, r := range rows {
		fmt.Printf("%-4d %-8d %-24s %-10.2f\n", i+1, r.NodeIndex, r.Code, r.Value)
	}
}

func printSkipped(skipped []geo.Skip) {
	for _, s := range skipped {
		fmt.Printf("  skipped node %d (%s): %s %s\n", s.Index, s.Code, s.Reason, s.Detail)
	}
}

func writeJSON(path string, v any) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		panic(err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
