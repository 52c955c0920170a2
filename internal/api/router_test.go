package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmp-gridmap/internal/api/handlers"
	"lmp-gridmap/internal/api/models"
	"lmp-gridmap/internal/cache"
	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/observability"
	"lmp-gridmap/internal/pricemap"
	"lmp-gridmap/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func pf(v float64) *float64 { return &v }

var hour = time.Date(2024, 7, 15, 14, 0, 0, 0, time.UTC)

func testSnapshot() *store.Snapshot {
	return &store.Snapshot{
		Nodes: []store.SnapshotNode{
			{Node: model.Node{Code: "N1", Name: "One", Latitude: 30, Longitude: -97, Market: "MDA"}},
			{Node: model.Node{Code: "N2", Name: "Two", Latitude: 31, Longitude: -98, Market: "MDA"}},
			{Node: model.Node{Code: "BAD", Name: "Bad", Latitude: 200, Longitude: -98, Market: "MDA"}},
			{Node: model.Node{Code: "E1", Name: "Ercot", Latitude: 32, Longitude: -99, Market: "ERCOT"}},
		},
		Records: []model.PriceRecord{
			{NodeCode: "N1", Timestamp: hour.Add(10 * time.Minute), Market: "MDA", Price: pf(40), WindCapture: pf(0.3)},
			{NodeCode: "N1", Timestamp: hour.Add(40 * time.Minute), Market: "MDA", Price: pf(45)},
			{NodeCode: "E1", Timestamp: hour, Market: "ERCOT", Price: pf(21)},
		},
	}
}

func newTestRouter(t *testing.T, svc Service) *gin.Engine {
	t.Helper()
	if svc == nil {
		b, err := geo.NewRectBoundary("texas", geo.TexasBounds)
		require.NoError(t, err)
		mem := store.NewMemory(testSnapshot())
		gc := cache.NewMemory(time.Hour, 0)
		t.Cleanup(func() { _ = gc.Close() })
		svc = pricemap.NewService(mem, mem, gc, b, geo.DefaultCellConfig())
	}
	return NewRouter(Options{
		Service:  svc,
		Defaults: handlers.Defaults{MapMarket: "MDA", SnapshotMarket: "ERCOT"},
		Registry: observability.InitRegistry(),
		Logger:   zerolog.Nop(),
	})
}

func get(t *testing.T, r http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorDetail {
	t.Helper()
	var env models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env.Error
}

func TestHealth(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestVoronoiMap(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:30:00Z&market=MDA")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "1", rr.Header().Get(handlers.SkippedNodesHeader))
	assert.NotEmpty(t, rr.Header().Get("ETag"))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, "Polygon", first.Geometry.Type)
	assert.Equal(t, "N1", first.Properties["code"])
	assert.Equal(t, float64(1), first.Properties["node_id"])
	assert.InDelta(t, 42.5, first.Properties["price"], 1e-12)
	ring := first.Geometry.Coordinates[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])

	assert.Equal(t, "N2", fc.Features[1].Properties["code"])
	assert.Equal(t, float64(2), fc.Features[1].Properties["node_id"])
	assert.Nil(t, fc.Features[1].Properties["price"])
}

func TestVoronoiMap_DefaultsAndDataType(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00&datatype=wind_capture")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var fc featureCollection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.InDelta(t, 0.3, fc.Features[0].Properties["price"], 1e-12)
}

func TestVoronoiMap_NoDataHour(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/voronoi-map?timestamp=2030-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rr.Code)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	for _, f := range fc.Features {
		assert.Contains(t, f.Properties, "price")
		assert.Nil(t, f.Properties["price"])
	}
}

func TestVoronoiMap_EmptyMarket(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00Z&market=NOPE")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, rr.Body.String())
	assert.Equal(t, "0", rr.Header().Get(handlers.SkippedNodesHeader))
}

func TestVoronoiMap_ETag(t *testing.T) {
	r := newTestRouter(t, nil)
	target := "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00Z"
	first := get(t, r, target)
	require.Equal(t, http.StatusOK, first.Code)

	etag := first.Header().Get("ETag")
	second := get(t, r, target, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))
}

func TestVoronoiMap_BadRequests(t *testing.T) {
	r := newTestRouter(t, nil)
	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"missing timestamp", "/api/v1/prices/voronoi-map", "INVALID_REQUEST"},
		{"bad timestamp", "/api/v1/prices/voronoi-map?timestamp=yesterday", "INVALID_TIMESTAMP"},
		{"bad datatype", "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00Z&datatype=load", "INVALID_DATATYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, r, tt.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

// failingService returns err from every call.
type failingService struct{ err error }

func (f failingService) Build(ctx context.Context, req pricemap.Request) (*pricemap.Result, error) {
	return nil, f.err
}
func (f failingService) Snapshot(ctx context.Context, req pricemap.Request) ([]model.SnapshotRow, time.Time, time.Time, error) {
	return nil, time.Time{}, time.Time{}, f.err
}
func (f failingService) Nodes(ctx context.Context, market string) ([]model.Node, error) {
	return nil, f.err
}
func (f failingService) Refresh(ctx context.Context, market string) (int, error) {
	return 0, f.err
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"price lookup", fmt.Errorf("%w: boom", pricemap.ErrPriceLookup), http.StatusBadGateway, "PRICE_LOOKUP_ERROR"},
		{"node lookup", fmt.Errorf("%w: boom", pricemap.ErrNodeLookup), http.StatusBadGateway, "NODE_LOOKUP_ERROR"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "REQUEST_CANCELLED"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "REQUEST_CANCELLED"},
		{"other", errors.New("nil pointer"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, failingService{err: tt.err})
			for _, target := range []string{
				"/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00Z",
				"/api/v1/prices/map-stats?timestamp=2024-07-15T14:00:00Z",
				"/api/v1/prices/hourly-snapshot?timestamp=2024-07-15T14:00:00Z",
				"/api/v1/nodes",
			} {
				rr := get(t, r, target)
				assert.Equal(t, tt.status, rr.Code, target)
				assert.Equal(t, tt.code, decodeError(t, rr).Code, target)
			}
		})
	}
}

func TestRefreshErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"cache", fmt.Errorf("%w: redis down", pricemap.ErrGridCache), http.StatusBadGateway, "CACHE_ERROR"},
		{"node lookup", fmt.Errorf("%w: boom", pricemap.ErrNodeLookup), http.StatusBadGateway, "NODE_LOOKUP_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, failingService{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/grid/refresh", nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestMapStats(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/map-stats?timestamp=2024-07-15T14:59:59Z&top=1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.MapStatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "MDA", resp.Market)
	assert.Equal(t, "price", resp.DataType)
	assert.Equal(t, "$/MWh", resp.Unit)
	assert.True(t, hour.Equal(resp.Window.Start))
	assert.True(t, hour.Add(time.Hour).Equal(resp.Window.End))
	assert.Equal(t, 2, resp.Cells)
	assert.Equal(t, 1, resp.WithValue)
	assert.Equal(t, 1, resp.WithoutValue)
	require.NotNil(t, resp.Mean)
	assert.InDelta(t, 42.5, *resp.Mean, 1e-12)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.SkippedNodes, 1)
	assert.Equal(t, "BAD", resp.SkippedNodes[0].Code)
	require.Len(t, resp.Highest, 1)
	assert.Equal(t, "N1", resp.Highest[0].Code)
}

func TestMapStats_InvalidTop(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/v1/prices/map-stats?timestamp=2024-07-15T14:00:00Z&top=500")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rr).Code)
}

func TestHourlySnapshot(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := get(t, r, "/api/v1/prices/hourly-snapshot?timestamp=2024-07-15T14:20:00Z")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "E1", rows[0]["code"])
	assert.Equal(t, 21.0, rows[0]["price"])
	for _, k := range []string{"node_id", "code", "name", "latitude", "longitude", "price", "timestamp"} {
		assert.Contains(t, rows[0], k)
	}

	rr = get(t, r, "/api/v1/prices/hourly-snapshot?timestamp=2024-07-15T14:20:00Z&market=MDA")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "N1", rows[0]["code"])
}

func TestListNodesAndRefresh(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := get(t, r, "/api/v1/nodes?market=MDA")
	require.Equal(t, http.StatusOK, rr.Code)
	var nodes models.NodesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &nodes))
	assert.Equal(t, 3, nodes.Count)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grid/refresh?market=MDA", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"rebuilt","market":"MDA","cells":2}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	_ = get(t, r, "/api/v1/prices/voronoi-map?timestamp=2024-07-15T14:00:00Z")

	rr := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `gridmap_http_requests_total{method="GET",route="/api/v1/prices/voronoi-map",status="200"}`)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/prices/voronoi-map", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rr).Code)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>map</html>"), 0o644))

	b, err := geo.NewRectBoundary("texas", geo.TexasBounds)
	require.NoError(t, err)
	mem := store.NewMemory(testSnapshot())
	r := NewRouter(Options{
		Service:   pricemap.NewService(mem, mem, nil, b, geo.DefaultCellConfig()),
		StaticDir: dir,
		Logger:    zerolog.Nop(),
	})

	rr := get(t, r, "/some/client/route")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "map")

	rr = get(t, r, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
