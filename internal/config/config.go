package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"lmp-gridmap/internal/geo"
)

// Config is the on-disk configuration shape (YAML). Environment variables
// override the file; see applyEnv.
type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`

	// Optional GeoJSON boundary. When set it replaces Boundary.
	BoundaryFile string         `yaml:"boundary_file"`
	Boundary     BoundaryConfig `yaml:"boundary"`

	Cells    geo.CellConfig `yaml:"cells"`
	Data     DataConfig     `yaml:"data"`
	Cache    CacheConfig    `yaml:"cache"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type BoundaryConfig struct {
	Name       string `yaml:"name"`
	geo.Bounds `yaml:",inline"`
}

// DataConfig selects the node/price store. DatabaseURL wins when both are set.
type DataConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	SnapshotFile string `yaml:"snapshot_file"`
}

type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory | redis | none
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
}

// DefaultsConfig holds the market used when a request names none.
type DefaultsConfig struct {
	MapMarket      string `yaml:"map_market"`
	SnapshotMarket string `yaml:"snapshot_market"`
}

// Default returns the configuration used for fields the file leaves out.
func Default() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Server: ServerConfig{
			Port:      "8080",
			StaticDir: "./web/dist",
		},
		Boundary: BoundaryConfig{Name: "texas", Bounds: geo.TexasBounds},
		Cells:    geo.DefaultCellConfig(),
		Cache: CacheConfig{
			Backend:         "memory",
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Defaults: DefaultsConfig{MapMarket: "MDA", SnapshotMarket: "ERCOT"},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// An empty path yields the defaults plus environment overrides.
func LoadUnchecked(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&c)

	// Relative file paths are resolved against the config file directory
	// first, falling back to the working directory.
	if path != "" {
		c.BoundaryFile = resolve(path, c.BoundaryFile)
		c.Data.SnapshotFile = resolve(path, c.Data.SnapshotFile)
	}
	return &c, nil
}

func resolve(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	cand := filepath.Join(filepath.Dir(configPath), p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("API_ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	str("API_PORT", &c.Server.Port)
	str("STATIC_DIR", &c.Server.StaticDir)
	str("BOUNDARY_FILE", &c.BoundaryFile)
	str("DATABASE_URL", &c.Data.DatabaseURL)
	str("SNAPSHOT_FILE", &c.Data.SnapshotFile)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)

	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = n
		}
	}
	if v, ok := os.LookupEnv("CACHE_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v, ok := os.LookupEnv("GRID_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cells.Workers = n
		}
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port %q is not a number", c.Server.Port)
	}
	if c.Cells.SideLatDegrees == 0 || c.Cells.HalfSideLonDegrees == 0 {
		return errors.New("cells.side_lat_degrees and cells.half_side_lon_degrees must be non-zero")
	}
	if c.Cells.Workers < 0 {
		return errors.New("cells.workers must not be negative")
	}
	if c.BoundaryFile == "" {
		b := c.Boundary.Bounds
		if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
			return fmt.Errorf("boundary: min must be below max (lat %v..%v, lng %v..%v)", b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
		}
	}
	if c.Data.DatabaseURL == "" && c.Data.SnapshotFile == "" {
		return errors.New("data.database_url or data.snapshot_file is required")
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q must be memory, redis or none", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	return nil
}

// LoadBoundary builds the clipping boundary: the GeoJSON file if one is
// configured, the rectangle otherwise.
func (c *Config) LoadBoundary() (*geo.Boundary, error) {
	name := c.Boundary.Name
	if name == "" {
		name = "boundary"
	}
	if c.BoundaryFile != "" {
		return geo.LoadBoundaryGeoJSON(name, c.BoundaryFile)
	}
	return geo.NewRectBoundary(name, c.Boundary.Bounds)
}

// Production reports whether the process runs in production mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}
