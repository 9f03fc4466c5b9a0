package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Cart         CartConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CartConfig selects where cart records live and how sessions are keyed.
type CartConfig struct {
	Storage       string        `envconfig:"STOREFRONT_CART_STORAGE" default:"sql"`
	StorageKey    string        `envconfig:"STOREFRONT_CART_STORAGE_KEY" default:"cart"`
	MinorUnits    int32         `envconfig:"STOREFRONT_CART_MINOR_UNITS" default:"2"`
	RedisTTL      time.Duration `envconfig:"STOREFRONT_CART_REDIS_TTL" default:"0"`
	SessionHeader string        `envconfig:"STOREFRONT_CART_SESSION_HEADER" default:"X-Cart-Session"`
	SessionCookie string        `envconfig:"STOREFRONT_CART_SESSION_COOKIE" default:"cart_session"`
	RegistrySize  int           `envconfig:"STOREFRONT_CART_REGISTRY_SIZE" default:"4096"`
}

// StorageDriver returns the normalized storage driver name.
func (c CartConfig) StorageDriver() string {
	return strings.ToLower(strings.TrimSpace(c.Storage))
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// DriverName returns the normalized database driver.
func (db DBConfig) DriverName() string {
	return strings.ToLower(strings.TrimSpace(db.Driver))
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (c *Config) validate() error {
	switch c.Cart.StorageDriver() {
	case StorageMemory:
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for redis cart storage", EnvRedisURL, EnvRedisAddr)
		}
	case StorageSQL:
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvCartStorage, c.Cart.Storage)
	}
	if c.Cart.MinorUnits < 0 {
		return fmt.Errorf("%s must be non-negative", EnvCartMinorUnits)
	}
	if strings.TrimSpace(c.Cart.StorageKey) == "" {
		return fmt.Errorf("%s must not be empty", EnvCartStorageKey)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	switch db.DriverName() {
	case DBDriverSQLite:
		if db.DSN == "" {
			db.DSN = "file:storefront-cart.db?_busy_timeout=5000"
		}
		return nil
	case DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}

	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
