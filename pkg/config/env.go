package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvLogLevel     = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat    = "STOREFRONT_LOG_FORMAT"
	EnvLogWarnStack = "STOREFRONT_LOG_WARN_STACK"
	EnvCORSOrigins  = "STOREFRONT_CORS_ORIGINS"

	EnvCartStorage      = "STOREFRONT_CART_STORAGE"
	EnvCartStorageKey   = "STOREFRONT_CART_STORAGE_KEY"
	EnvCartMinorUnits   = "STOREFRONT_CART_MINOR_UNITS"
	EnvCartRedisTTL     = "STOREFRONT_CART_REDIS_TTL"
	EnvCartSessionHdr   = "STOREFRONT_CART_SESSION_HEADER"
	EnvCartSessionCk    = "STOREFRONT_CART_SESSION_COOKIE"
	EnvCartRegistrySize = "STOREFRONT_CART_REGISTRY_SIZE"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBDriver   = "STOREFRONT_DB_DRIVER"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBPort     = "STOREFRONT_DB_PORT"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"
	EnvDBName     = "STOREFRONT_DB_NAME"
	EnvDBSSLMode  = "STOREFRONT_DB_SSLMODE"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvAutoMigrate = "STOREFRONT_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Storage drivers understood by STOREFRONT_CART_STORAGE.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
)

// Database drivers understood by STOREFRONT_DB_DRIVER.
const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)
