package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Cache   CacheConfig
	StoreDB StoreDBConfig
	Sync    SyncConfig
	Ebay    EbayConfig
	Depop   DepopConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"300s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"storesync-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`

	// StoreStatus gates syncs per marketplace, e.g. "ebay:active,depop:inactive".
	StoreStatus map[string]string `envconfig:"STORE_STATUS" default:"ebay:active,depop:active"`
}

// CacheConfig holds cache and lock backend settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"storesync"`
}

// StoreDBConfig holds persistence gateway settings.
type StoreDBConfig struct {
	Type string `envconfig:"STORE_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql, mongodb or memory
	Path string `envconfig:"STORE_DB_PATH" default:"./data/storesync.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"storesync"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"storesync"`
}

// SyncConfig holds engine and worker settings.
type SyncConfig struct {
	MaxLoopDepth     int           `envconfig:"MAX_WHILE_LOOP_DEPTH" default:"50"`
	ListingPageCap   int           `envconfig:"SYNC_LISTING_PAGE_CAP" default:"200"`
	OrderPageCap     int           `envconfig:"SYNC_ORDER_PAGE_CAP" default:"200"`
	LockTTL          time.Duration `envconfig:"SYNC_LOCK_TTL" default:"10m"`
	RunTimeout       time.Duration `envconfig:"SYNC_RUN_TIMEOUT" default:"15m"`
	Workers          int           `envconfig:"SYNC_WORKERS" default:"4"`
	QueueSize        int           `envconfig:"SYNC_QUEUE_SIZE" default:"256"`
	AutoSyncInterval time.Duration `envconfig:"SYNC_AUTO_INTERVAL" default:"0s"`
	LimitsFile       string        `envconfig:"SYNC_LIMITS_FILE" default:""`
}

// EbayConfig holds Trading API settings.
type EbayConfig struct {
	Endpoint           string        `envconfig:"EBAY_TRADING_ENDPOINT" default:"https://api.ebay.com/ws/api.dll"`
	AppID              string        `envconfig:"CLIENT_ID" default:""`
	DevID              string        `envconfig:"DEV_ID" default:""`
	CertID             string        `envconfig:"CLIENT_SECRET" default:""`
	SiteID             string        `envconfig:"EBAY_SITE_ID" default:"3"`
	CompatibilityLevel string        `envconfig:"EBAY_COMPAT_LEVEL" default:"1311"`
	Timeout            time.Duration `envconfig:"EBAY_TIMEOUT" default:"30s"`
	RequestsPerSecond  float64       `envconfig:"EBAY_RPS" default:"5"`
}

// DepopConfig holds Depop web API settings.
type DepopConfig struct {
	BaseURL           string        `envconfig:"DEPOP_BASE_URL" default:"https://webapi.depop.com"`
	Timeout           time.Duration `envconfig:"DEPOP_TIMEOUT" default:"30s"`
	RequestsPerSecond float64       `envconfig:"DEPOP_RPS" default:"2"`
	ChromeTLS         bool          `envconfig:"DEPOP_CHROME_TLS" default:"true"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (d *StoreDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (d *StoreDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// StoreActive reports whether syncs are enabled for a marketplace.
func (a *AppConfig) StoreActive(store string) bool {
	return a.StoreStatus[store] == "active"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Sync.MaxLoopDepth <= 0 {
		return nil, fmt.Errorf("MAX_WHILE_LOOP_DEPTH must be positive, got %d", cfg.Sync.MaxLoopDepth)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
