package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/observability"
)

// SnapshotNode is a node entry in a snapshot file. A missing is_active means
// active.
type SnapshotNode struct {
	model.Node
	Active *bool `json:"is_active,omitempty"`
}

// Snapshot is the on-disk layout read by LoadSnapshotFile.
type Snapshot struct {
	UpdatedAt string              `json:"updated_at,omitempty"` // ISO 8601 timestamp
	Nodes     []SnapshotNode      `json:"nodes"`
	Records   []model.PriceRecord `json:"records"`
}

// LoadSnapshotFile reads a snapshot from a JSON file.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	return &snap, nil
}

// SaveSnapshotFile writes snap as indented JSON, creating the directory.
func SaveSnapshotFile(snap *Snapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// Memory serves a snapshot from memory. It is read-only after construction
// and safe for concurrent use.
type Memory struct {
	nodes   []SnapshotNode
	ids     map[string]int // code -> 1-based position in nodes
	records []model.PriceRecord
}

// NewMemory indexes snap. Records for unknown node codes are kept but never
// returned, matching the join in the PostgreSQL store.
func NewMemory(snap *Snapshot) *Memory {
	m := &Memory{ids: map[string]int{}}
	if snap == nil {
		return m
	}
	m.nodes = snap.Nodes
	for i, n := range snap.Nodes {
		if _, dup := m.ids[n.Code]; !dup {
			m.ids[n.Code] = i + 1
		}
	}
	m.records = make([]model.PriceRecord, len(snap.Records))
	copy(m.records, snap.Records)
	sort.SliceStable(m.records, func(i, j int) bool {
		return m.records[i].Timestamp.Before(m.records[j].Timestamp)
	})
	return m
}

// OpenSnapshot loads path into a Memory store.
func OpenSnapshot(path string) (*Memory, error) {
	snap, err := LoadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemory(snap), nil
}

func (m *Memory) ListActiveNodes(ctx context.Context, market string) (nodes []model.Node, err error) {
	defer observeMemory("list_active_nodes", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes = []model.Node{}
	for _, n := range m.nodes {
		if n.Active != nil && !*n.Active {
			continue
		}
		if market != "" && n.Market != market {
			continue
		}
		nodes = append(nodes, n.Node)
	}
	return nodes, nil
}

func (m *Memory) AverageByNode(ctx context.Context, field model.DataField, start, end time.Time, market string) (out map[string]float64, err error) {
	defer observeMemory("average_by_node", time.Now(), &err)

	acc, err := m.accumulate(ctx, field, start, end, market)
	if err != nil {
		return nil, err
	}
	out = make(map[string]float64, len(acc))
	for code, a := range acc {
		out[code] = a.mean()
	}
	return out, nil
}

func (m *Memory) HourlySnapshot(ctx context.Context, field model.DataField, start, end time.Time, market string) (out []model.SnapshotRow, err error) {
	defer observeMemory("hourly_snapshot", time.Now(), &err)

	acc, err := m.accumulate(ctx, field, start, end, market)
	if err != nil {
		return nil, err
	}
	out = make([]model.SnapshotRow, 0, len(acc))
	for code, a := range acc {
		id := m.ids[code]
		n := m.nodes[id-1]
		out = append(out, model.SnapshotRow{
			NodeID:    id,
			Code:      code,
			Name:      n.Name,
			Latitude:  n.Latitude,
			Longitude: n.Longitude,
			Value:     a.mean(),
			Timestamp: a.latest,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

type average struct {
	sum    float64
	n      int
	latest time.Time
}

func (a average) mean() float64 { return a.sum / float64(a.n) }

func (m *Memory) accumulate(ctx context.Context, field model.DataField, start, end time.Time, market string) (map[string]*average, error) {
	if _, err := columnFor(field); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// records are sorted by timestamp, so the window is a contiguous run.
	lo := sort.Search(len(m.records), func(i int) bool { return !m.records[i].Timestamp.Before(start) })
	acc := map[string]*average{}
	for _, r := range m.records[lo:] {
		if !r.Timestamp.Before(end) {
			break
		}
		if r.Market != market {
			continue
		}
		if _, known := m.ids[r.NodeCode]; !known {
			continue
		}
		v := r.Value(field)
		if v == nil {
			continue
		}
		a := acc[r.NodeCode]
		if a == nil {
			a = &average{}
			acc[r.NodeCode] = a
		}
		a.sum += *v
		a.n++
		if r.Timestamp.After(a.latest) {
			a.latest = r.Timestamp
		}
	}
	return acc, nil
}

func observeMemory(op string, start time.Time, err *error) {
	observability.ObserveStore("memory", op, *err, time.Since(start))
}
