package config

const (
	EnvPrefix = "ORDERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv     = "ORDERFLOW_APP_ENV"
	EnvPort       = "ORDERFLOW_APP_PORT"
	EnvLogLevel   = "ORDERFLOW_LOG_LEVEL"
	EnvDBDSN      = "ORDERFLOW_DB_DSN"
	EnvDBDriver   = "ORDERFLOW_DB_DRIVER"
	EnvDBHost     = "ORDERFLOW_DB_HOST"
	EnvDBPort     = "ORDERFLOW_DB_PORT"
	EnvDBUser     = "ORDERFLOW_DB_USER"
	EnvDBPassword = "ORDERFLOW_DB_PASSWORD"
	EnvDBName     = "ORDERFLOW_DB_NAME"
	EnvDBSSLMode  = "ORDERFLOW_DB_SSLMODE"
	EnvSQLitePath = "ORDERFLOW_SQLITE_PATH"
	EnvUseSQLite  = "ORDERFLOW_USE_SQLITE"
	EnvRedisURL   = "ORDERFLOW_REDIS_URL"
	EnvStockCache = "ORDERFLOW_STOCK_CACHE"
	EnvCacheTTL   = "ORDERFLOW_STOCK_CACHE_TTL"

	EnvKafkaBrokers    = "ORDERFLOW_KAFKA_BROKERS"
	EnvKafkaOrderTopic = "ORDERFLOW_KAFKA_ORDER_TOPIC"
	EnvOutboxBatchSize = "ORDERFLOW_OUTBOX_BATCH_SIZE"
	EnvCronInterval    = "ORDERFLOW_CRON_INTERVAL"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
