package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/constants"
)

// Registry backend names accepted by REGISTRY_BACKEND
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

type Config struct {
	Embedding EmbeddingConfig
	Matching  MatchingConfig
	Scan      ScanConfig
	Camera    CameraConfig
	Registry  RegistryConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Images    ImageConfig
	Log       LogConfig
	Web       WebConfig
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // expected face embedding length, 0 disables the check
}

type MatchingConfig struct {
	Threshold float64 // maximum Euclidean distance (exclusive), defaults to 0.6
}

type ScanConfig struct {
	Interval      time.Duration // tick period, defaults to 500ms
	TickTimeout   time.Duration // bound on one frame grab + extraction
	DegradedAfter int           // consecutive failed ticks before degraded mode
}

type CameraConfig struct {
	SnapshotURL string // HTTP endpoint returning a single JPEG frame
	FrameDir    string // directory of frames replayed in a loop (used when SnapshotURL is empty)
	MaxSize     int    // frames larger than this are downscaled before extraction
}

type RegistryConfig struct {
	Backend string // file, postgres, mysql, sqlite or redis
	File    string // directory used by the file backend
	Key     string // storage key holding the registry
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MySQLDSN     string // MySQL/MariaDB DSN
	SQLitePath   string // SQLite database file
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string // pub/sub channel for recognition transitions, empty disables publishing
}

type ImageConfig struct {
	Dir string // where enrollment photos are kept, empty disables image storage
}

type LogConfig struct {
	Mode string // dev or prod
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string // optional bearer token protecting the API
	AllowedOrigins []string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration accepts Go duration strings ("500ms", "1s") or a bare number of milliseconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// envString returns the env var or defaultVal when it is unset or blank.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	redisDB, err := strconv.Atoi(os.Getenv("REDIS_DB"))
	if err != nil || redisDB < 0 {
		redisDB = 0
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 0),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", constants.MatchThreshold),
		},
		Scan: ScanConfig{
			Interval:      envDuration("SCAN_INTERVAL", constants.DefaultScanInterval),
			TickTimeout:   envDuration("SCAN_TICK_TIMEOUT", constants.DefaultTickTimeout),
			DegradedAfter: envInt("SCAN_DEGRADED_AFTER", constants.DegradedAfterFailures),
		},
		Camera: CameraConfig{
			SnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),
			FrameDir:    os.Getenv("CAMERA_FRAME_DIR"),
			MaxSize:     envInt("CAMERA_MAX_SIZE", constants.MaxImageSize),
		},
		Registry: RegistryConfig{
			Backend: strings.ToLower(envString("REGISTRY_BACKEND", BackendFile)),
			File:    envString("REGISTRY_DIR", "./data"),
			Key:     envString("REGISTRY_KEY", constants.RegistryKey),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MySQLDSN:     os.Getenv("MYSQL_DSN"),
			SQLitePath:   envString("SQLITE_PATH", "./data/memory-anchor.db"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  os.Getenv("REDIS_CHANNEL"),
		},
		Images: ImageConfig{
			Dir: envString("IMAGE_DIR", "./data/images"),
		},
		Log: LogConfig{
			Mode: envString("LOG_MODE", "dev"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// HasCamera reports whether any frame source is configured.
func (c *CameraConfig) HasCamera() bool {
	return c.SnapshotURL != "" || c.FrameDir != ""
}
