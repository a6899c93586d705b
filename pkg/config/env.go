package config

const (
	EnvPrefix = "MARKETLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "MARKETLEDGER_APP_ENV"
	EnvPort     = "MARKETLEDGER_APP_PORT"
	EnvLogLevel = "MARKETLEDGER_LOG_LEVEL"

	EnvDBDSN  = "MARKETLEDGER_DB_DSN"
	EnvDBHost = "MARKETLEDGER_DB_HOST"
	EnvDBUser = "MARKETLEDGER_DB_USER"
	EnvDBName = "MARKETLEDGER_DB_NAME"

	EnvRedisURL = "MARKETLEDGER_REDIS_URL"

	EnvGCPProjectID = "MARKETLEDGER_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic = "MARKETLEDGER_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "MARKETLEDGER_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubLedgerTopic = "MARKETLEDGER_PUBSUB_LEDGER_TOPIC"
	EnvPubSubLedgerSub   = "MARKETLEDGER_PUBSUB_LEDGER_SUBSCRIPTION"

	EnvCommissionRate = "MARKETLEDGER_COMMISSION_RATE_PERCENT"
	EnvRetryBackoff   = "MARKETLEDGER_RETRY_BACKOFF"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
