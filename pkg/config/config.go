package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	License       LicenseConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cron          CronConfig
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
	Env          string `envconfig:"PERKPILOT_APP_ENV" required:"true"`
	Port         string `envconfig:"PERKPILOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PERKPILOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PERKPILOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PERKPILOT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PERKPILOT_DB_DSN"`
	Driver string `envconfig:"PERKPILOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PERKPILOT_DB_HOST"`
	LegacyPort     int    `envconfig:"PERKPILOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PERKPILOT_DB_USER"`
	LegacyPassword string `envconfig:"PERKPILOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PERKPILOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PERKPILOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PERKPILOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PERKPILOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PERKPILOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PERKPILOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PERKPILOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PERKPILOT_REDIS_ADDR"`
	Password     string        `envconfig:"PERKPILOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERKPILOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERKPILOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERKPILOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERKPILOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERKPILOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PERKPILOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PERKPILOT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PERKPILOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PERKPILOT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PERKPILOT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PERKPILOT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PERKPILOT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PERKPILOT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PERKPILOT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PERKPILOT_ARGON_KEY_LEN" default:"32"`
}

// LicenseConfig carries the settings consumed by the license validation core.
// SigningSecret is loaded once at process start and handed to the response
// signer; no other component reads it.
type LicenseConfig struct {
	SigningSecret string `envconfig:"PERKPILOT_LICENSE_SIGNING_SECRET" required:"true"`
	APIKeyBytes   int    `envconfig:"PERKPILOT_LICENSE_API_KEY_BYTES" default:"20"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PERKPILOT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"PERKPILOT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"PERKPILOT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PERKPILOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PERKPILOT_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PERKPILOT_CRON_INTERVAL" default:"24h"`
	SweepBatchSize  int           `envconfig:"PERKPILOT_CRON_SWEEP_BATCH_SIZE" default:"500"`
	ForumIdleWindow time.Duration `envconfig:"PERKPILOT_CRON_FORUM_IDLE_WINDOW" default:"2160h"`
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
