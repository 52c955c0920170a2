package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/observability"
)

const (
	listActiveNodesSQL = `
SELECT id, code, name, latitude, longitude, market, zone
FROM nodes
WHERE is_active AND ($1 = '' OR market = $1)
ORDER BY id`

	averageByNodeSQL = `
SELECT n.code, AVG(p.%[1]s)
FROM price_records p
JOIN nodes n ON n.id = p.node_id
WHERE p.timestamp >= $1 AND p.timestamp < $2 AND p.market = $3 AND p.%[1]s IS NOT NULL
GROUP BY n.code`

	hourlySnapshotSQL = `
SELECT n.id, n.code, n.name, n.latitude, n.longitude, AVG(p.%[1]s), MAX(p.timestamp)
FROM nodes n
JOIN price_records p ON p.node_id = n.id
WHERE p.timestamp >= $1 AND p.timestamp < $2 AND p.market = $3 AND p.%[1]s IS NOT NULL
GROUP BY n.id, n.code, n.name, n.latitude, n.longitude
ORDER BY n.id`

	recordsSQL = `
SELECT n.code, p.timestamp, p.market, p.price, p.solar_capture, p.wind_capture
FROM price_records p
JOIN nodes n ON n.id = p.node_id
WHERE p.timestamp >= $1 AND p.timestamp < $2 AND ($3 = '' OR p.market = $3)
ORDER BY p.timestamp, n.id`
)

// Postgres reads nodes and price records from the nodes and price_records
// tables. The schema is owned elsewhere.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens and pings a connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an open pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListActiveNodes returns active nodes ordered by id. An empty market returns
// every market.
func (s *Postgres) ListActiveNodes(ctx context.Context, market string) (nodes []model.Node, err error) {
	defer observe("list_active_nodes", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, listActiveNodesSQL, market)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes = []model.Node{}
	for rows.Next() {
		var (
			id   int
			n    model.Node
			zone sql.NullString
		)
		if err := rows.Scan(&id, &n.Code, &n.Name, &n.Latitude, &n.Longitude, &n.Market, &zone); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if zone.Valid {
			z := zone.String
			n.Zone = &z
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// AverageByNode returns the mean of field per node code over [start, end).
// Nodes without a non-null value in the window are absent.
func (s *Postgres) AverageByNode(ctx context.Context, field model.DataField, start, end time.Time, market string) (out map[string]float64, err error) {
	defer observe("average_by_node", time.Now(), &err)

	col, err := columnFor(field)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(averageByNodeSQL, col), start.UTC(), end.UTC(), market)
	if err != nil {
		return nil, fmt.Errorf("query %s averages: %w", field, err)
	}
	defer rows.Close()

	out = map[string]float64{}
	for rows.Next() {
		var (
			code string
			avg  float64
		)
		if err := rows.Scan(&code, &avg); err != nil {
			return nil, fmt.Errorf("scan average: %w", err)
		}
		out[code] = avg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate averages: %w", err)
	}
	return out, nil
}

// HourlySnapshot returns one averaged row per node with data in [start, end).
func (s *Postgres) HourlySnapshot(ctx context.Context, field model.DataField, start, end time.Time, market string) (out []model.SnapshotRow, err error) {
	defer observe("hourly_snapshot", time.Now(), &err)

	col, err := columnFor(field)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(hourlySnapshotSQL, col), start.UTC(), end.UTC(), market)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out = []model.SnapshotRow{}
	for rows.Next() {
		var r model.SnapshotRow
		if err := rows.Scan(&r.NodeID, &r.Code, &r.Name, &r.Latitude, &r.Longitude, &r.Value, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

// Records returns raw price records in [start, end), used to export a
// snapshot file.
func (s *Postgres) Records(ctx context.Context, start, end time.Time, market string) (out []model.PriceRecord, err error) {
	defer observe("records", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, recordsSQL, start.UTC(), end.UTC(), market)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out = []model.PriceRecord{}
	for rows.Next() {
		var (
			r                  model.PriceRecord
			price, solar, wind sql.NullFloat64
		)
		if err := rows.Scan(&r.NodeCode, &r.Timestamp, &r.Market, &price, &solar, &wind); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		r.Price = nullable(price)
		r.SolarCapture = nullable(solar)
		r.WindCapture = nullable(wind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func observe(op string, start time.Time, err *error) {
	observability.ObserveStore("postgres", op, *err, time.Since(start))
}
