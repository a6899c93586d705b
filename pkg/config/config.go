package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Engine       EngineConfig
	Security     SecurityConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadForMigrations reads only the App and DB sections, so the migrate CLI
// runs without redis or GCP settings.
func LoadForMigrations() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MARKETLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// HTTPConfig drives the API server. CORSOrigins is comma separated.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"MARKETLEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout     time.Duration `envconfig:"MARKETLEDGER_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"MARKETLEDGER_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"MARKETLEDGER_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETLEDGER_DB_DSN"`
	Driver string `envconfig:"MARKETLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"MARKETLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"MARKETLEDGER_AUTO_MIGRATE" default:"false"`
	InProcessLocking bool `envconfig:"MARKETLEDGER_IN_PROCESS_LOCKING" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MARKETLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// EngineConfig holds the order/ledger engine knobs.
type EngineConfig struct {
	Currency              string        `envconfig:"MARKETLEDGER_CURRENCY" default:"NGN"`
	CommissionRatePercent string        `envconfig:"MARKETLEDGER_COMMISSION_RATE_PERCENT" default:"10"`
	PaymentGateway        string        `envconfig:"MARKETLEDGER_PAYMENT_GATEWAY" default:"wallet"`
	LockWait              time.Duration `envconfig:"MARKETLEDGER_LOCK_WAIT" default:"5s"`
	LockTTL               time.Duration `envconfig:"MARKETLEDGER_LOCK_TTL" default:"10s"`
	ReconcileGrace        time.Duration `envconfig:"MARKETLEDGER_RECONCILE_GRACE" default:"5m"`
	ReconcileInterval     time.Duration `envconfig:"MARKETLEDGER_RECONCILE_INTERVAL" default:"1m"`
	ReconcileBatchSize    int           `envconfig:"MARKETLEDGER_RECONCILE_BATCH_SIZE" default:"200"`
	RetryMaxAttempts      int           `envconfig:"MARKETLEDGER_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoff          string        `envconfig:"MARKETLEDGER_RETRY_BACKOFF" default:"1s,5s,10s"`
}

// CommissionRate parses the configured percentage (e.g. "10" or "7.5").
func (e EngineConfig) CommissionRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(e.CommissionRatePercent))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid commission rate %q: %w", e.CommissionRatePercent, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range [0,100]", rate)
	}
	return rate, nil
}

// BackoffSchedule parses the comma separated retry delays.
func (e EngineConfig) BackoffSchedule() ([]time.Duration, error) {
	raw := strings.TrimSpace(e.RetryBackoff)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			// bare integers are seconds
			secs, convErr := strconv.Atoi(part)
			if convErr != nil {
				return nil, fmt.Errorf("invalid backoff entry %q: %w", part, err)
			}
			d = time.Duration(secs) * time.Second
		}
		if d < 0 {
			return nil, fmt.Errorf("negative backoff entry %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func (e EngineConfig) validate() error {
	if _, err := e.CommissionRate(); err != nil {
		return err
	}
	if _, err := e.BackoffSchedule(); err != nil {
		return err
	}
	if e.LockWait <= 0 || e.LockTTL <= 0 {
		return fmt.Errorf("lock wait and ttl must be positive")
	}
	if e.ReconcileGrace <= 0 {
		return fmt.Errorf("reconcile grace must be positive")
	}
	return nil
}

type SecurityConfig struct {
	ArgonMemoryKB     int `envconfig:"MARKETLEDGER_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime         int `envconfig:"MARKETLEDGER_ARGON_TIME" default:"2"`
	ArgonParallelism  int `envconfig:"MARKETLEDGER_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen      int `envconfig:"MARKETLEDGER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen       int `envconfig:"MARKETLEDGER_ARGON_KEY_LEN" default:"32"`
	DeliveryOTPDigits int `envconfig:"MARKETLEDGER_DELIVERY_OTP_DIGITS" default:"6"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETLEDGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MARKETLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"MARKETLEDGER_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"MARKETLEDGER_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	LedgerTopic        string `envconfig:"MARKETLEDGER_PUBSUB_LEDGER_TOPIC" required:"true"`
	LedgerSubscription string `envconfig:"MARKETLEDGER_PUBSUB_LEDGER_SUBSCRIPTION" required:"true"`
	NotificationTopic  string `envconfig:"MARKETLEDGER_PUBSUB_NOTIFICATION_TOPIC" default:"ml-notification-delivery"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"MARKETLEDGER_BIGQUERY_DATASET" default:"marketledger"`
	LedgerFactsTable string `envconfig:"MARKETLEDGER_BIGQUERY_LEDGER_TABLE" default:"ledger_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// Retention bounds how long relayed outbox rows and read notifications are kept.
	Retention time.Duration `envconfig:"MARKETLEDGER_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
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
