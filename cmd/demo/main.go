package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"time"

	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/store"
)

// Demo:
// - Build a small set of ERCOT hubs and load zones
// - Generate synthetic hourly prices with a solar dip and an evening peak
// - Write a snapshot file the API and CLI can serve without PostgreSQL
func main() {
	outPath := flag.String("out", "data/snapshot.json", "Output snapshot path")
	start := flag.String("start", "2024-07-15", "First day (YYYY-MM-DD, UTC)")
	days := flag.Int("days", 2, "Number of days to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	day0, err := time.Parse("2006-01-02", *start)
	if err != nil {
		panic(err)
	}
	rng := rand.New(rand.NewSource(*seed))

	nodes := demoNodes()
	snap := &store.Snapshot{UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, n := range nodes {
		snap.Nodes = append(snap.Nodes, store.SnapshotNode{Node: n})
	}

	for h := 0; h < *days*24; h++ {
		ts := day0.Add(time.Duration(h) * time.Hour)
		for i, n := range nodes {
			snap.Records = append(snap.Records, synthRecord(rng, n, i, ts))
		}
	}

	if err := store.SaveSnapshotFile(snap, *outPath); err != nil {
		panic(err)
	}
	fmt.Printf("Wrote %d nodes and %d records to %s\n", len(snap.Nodes), len(snap.Records), *outPath)
	fmt.Printf("Try: go run ./cmd/cli stats --snapshot %s --timestamp %s\n", *outPath, day0.Add(18*time.Hour).Format(time.RFC3339))
}

func demoNodes() []model.Node {
	zone := func(s string) *string { return &s }
	return []model.Node{
		{Code: "HB_HOUSTON", Name: "Houston Hub", Latitude: 29.76, Longitude: -95.37, Market: "MDA", Zone: zone("HOUSTON")},
		{Code: "HB_NORTH", Name: "North Hub", Latitude: 32.78, Longitude: -96.80, Market: "MDA", Zone: zone("NORTH")},
		{Code: "HB_SOUTH", Name: "South Hub", Latitude: 29.42, Longitude: -98.49, Market: "MDA", Zone: zone("SOUTH")},
		{Code: "HB_WEST", Name: "West Hub", Latitude: 31.99, Longitude: -102.08, Market: "MDA", Zone: zone("WEST")},
		{Code: "HB_PAN", Name: "Panhandle Hub", Latitude: 35.22, Longitude: -101.83, Market: "MDA", Zone: zone("WEST")},
		{Code: "LZ_AEN", Name: "Austin Energy", Latitude: 30.27, Longitude: -97.74, Market: "MDA", Zone: zone("SOUTH")},
		{Code: "LZ_CPS", Name: "CPS Energy", Latitude: 29.30, Longitude: -98.60, Market: "MDA", Zone: zone("SOUTH")},
		{Code: "LZ_LCRA", Name: "LCRA", Latitude: 30.60, Longitude: -97.20, Market: "MDA", Zone: zone("SOUTH")},
		{Code: "LZ_RAYBN", Name: "Rayburn", Latitude: 33.10, Longitude: -96.10, Market: "MDA", Zone: zone("NORTH")},
		{Code: "HB_HOUSTON", Name: "Houston Hub", Latitude: 29.76, Longitude: -95.37, Market: "ERCOT", Zone: zone("HOUSTON")},
		{Code: "HB_WEST", Name: "West Hub", Latitude: 31.99, Longitude: -102.08, Market: "ERCOT", Zone: zone("WEST")},
	}
}

// synthRecord shapes a price curve from the hour of day. West nodes get
// more wind and a deeper midday dip.
func synthRecord(rng *rand.Rand, n model.Node, i int, ts time.Time) model.PriceRecord {
	hour := float64(ts.Hour())
	west := n.Longitude < -100

	solar := math.Max(0, math.Sin((hour-6)/12*math.Pi)) * 400
	wind := 300 + 200*math.Cos(hour/24*2*math.Pi)
	if west {
		wind *= 2
	}

	price := 30 + 5*float64(i%4)
	if hour >= 17 && hour <= 20 {
		price += 60
	}
	price -= solar / 40
	if west {
		price -= 8
	}
	price += rng.NormFloat64() * 4

	round := func(v float64) *float64 {
		r := math.Round(v*100) / 100
		return &r
	}
	return model.PriceRecord{
		NodeCode:     n.Code,
		Timestamp:    ts,
		Market:       n.Market,
		Price:        round(price),
		SolarCapture: round(solar),
		WindCapture:  round(wind),
	}
}
