package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "libreria"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "LIBRERIA_APP_ENV"
	EnvPort     = "LIBRERIA_APP_PORT"
	EnvDBDSN    = "LIBRERIA_DB_DSN"
	EnvDBHost   = "LIBRERIA_DB_HOST"
	EnvDBUser   = "LIBRERIA_DB_USER"
	EnvDBName   = "LIBRERIA_DB_NAME"
	EnvRedisURL = "LIBRERIA_REDIS_URL"
	EnvTaxRate  = "LIBRERIA_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIBRERIA_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRERIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRERIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIBRERIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LIBRERIA_DB_DSN"`
	Driver string `envconfig:"LIBRERIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIBRERIA_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRERIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRERIA_DB_USER"`
	LegacyPassword string `envconfig:"LIBRERIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRERIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRERIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRERIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRERIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRERIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRERIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIBRERIA_REDIS_URL"`
	Password     string        `envconfig:"LIBRERIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRERIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRERIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRERIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRERIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRERIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRERIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PricingConfig carries the tax policy applied to every cart recomputation.
// The rate is parsed by internal/pricing so it can be tested with other rates.
type PricingConfig struct {
	TaxRate string `envconfig:"LIBRERIA_TAX_RATE" default:"0.15"`
}

type FeatureFlagsConfig struct {
	AutoMigrate        bool          `envconfig:"LIBRERIA_AUTO_MIGRATE" default:"false"`
	CheckoutIdempotent bool          `envconfig:"LIBRERIA_CHECKOUT_IDEMPOTENCY" default:"true"`
	IdempotencyTTL     time.Duration `envconfig:"LIBRERIA_IDEMPOTENCY_TTL" default:"168h"`
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
