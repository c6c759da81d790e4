package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"dispatch/internal/core/domain/services"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config is read from the environment; a .env file in the working directory is
// loaded first when present. Keys are the section and field names, e.g. DB_HOST
// or DISPATCH_OFFER_TIMEOUT.
type Config struct {
	HTTP     HTTPConfig
	DB       DBConfig
	Redis    RedisConfig
	NATS     NATSConfig
	ORS      ORSConfig
	Dispatch DispatchConfig
	Jobs     JobsConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type DBConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
	Name     string `envconfig:"NAME" required:"true"`
	SslMode  string `envconfig:"SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SslMode)
}

type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	Addr         string        `envconfig:"ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"PASSWORD"`
	DB           int           `envconfig:"DB" default:"0"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"20"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type NATSConfig struct {
	URL           string `envconfig:"URL" default:"nats://localhost:4222"`
	SubjectPrefix string `envconfig:"SUBJECT_PREFIX" default:"dispatch"`
}

// ORSConfig configures openrouteservice, used for both route optimization and
// reverse geocoding.
type ORSConfig struct {
	BaseURL string        `envconfig:"BASE_URL" default:"https://api.openrouteservice.org"`
	APIKey  string        `envconfig:"API_KEY" required:"true"`
	Profile string        `envconfig:"PROFILE" default:"driving-car"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// DispatchConfig holds the environment defaults of the dispatch settings. Rows
// of the dispatch_settings table override them at startup.
type DispatchConfig struct {
	OfferTimeout          time.Duration `envconfig:"OFFER_TIMEOUT" default:"15s"`
	PingInterval          time.Duration `envconfig:"PING_INTERVAL" default:"2s"`
	MaxPingAttempts       int           `envconfig:"MAX_PING_ATTEMPTS" default:"10"`
	MaxAutoRetries        int           `envconfig:"MAX_AUTO_RETRIES" default:"2"`
	SearchRadiusKm        float64       `envconfig:"SEARCH_RADIUS_KM" default:"10"`
	MaxConcurrentMissions int           `envconfig:"MAX_CONCURRENT_MISSIONS" default:"2"`
	MaxDirectRadiusKm     float64       `envconfig:"MAX_DIRECT_RADIUS_KM" default:"1"`
	AllowChaining         bool          `envconfig:"ALLOW_CHAINING" default:"true"`
	DefaultVerification   string        `envconfig:"DEFAULT_VERIFICATION" default:"OTP"`
	OTPLength             int           `envconfig:"OTP_LENGTH" default:"6"`
	OTPMaxAttempts        int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	RetryBackoff          time.Duration `envconfig:"RETRY_BACKOFF" default:"10s"`
	OptimizerTimeout      time.Duration `envconfig:"OPTIMIZER_TIMEOUT" default:"10s"`
	LocationFlushInterval time.Duration `envconfig:"LOCATION_FLUSH_INTERVAL" default:"5m"`
}

func (c DispatchConfig) Settings() services.DispatchSettings {
	return services.DispatchSettings{
		OfferTimeout:          c.OfferTimeout,
		PingInterval:          c.PingInterval,
		MaxPingAttempts:       c.MaxPingAttempts,
		MaxAutoRetries:        c.MaxAutoRetries,
		SearchRadiusKm:        c.SearchRadiusKm,
		MaxConcurrentMissions: c.MaxConcurrentMissions,
		MaxDirectRadiusKm:     c.MaxDirectRadiusKm,
		AllowChaining:         c.AllowChaining,
		DefaultVerification:   c.DefaultVerification,
		OTPLength:             c.OTPLength,
		OTPMaxAttempts:        c.OTPMaxAttempts,
		RetryBackoff:          c.RetryBackoff,
		OptimizerTimeout:      c.OptimizerTimeout,
		LocationFlushInterval: c.LocationFlushInterval,
	}
}

type JobsConfig struct {
	DispatchInterval    time.Duration `envconfig:"DISPATCH_INTERVAL" default:"1s"`
	OfferExpiryInterval time.Duration `envconfig:"OFFER_EXPIRY_INTERVAL" default:"1s"`
	FlushLockTTL        time.Duration `envconfig:"FLUSH_LOCK_TTL" default:"10m"`
	RouteWorkers        int           `envconfig:"ROUTE_WORKERS" default:"4"`
	RouteQueueSize      int           `envconfig:"ROUTE_QUEUE_SIZE" default:"256"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

func (c LogConfig) ZerologLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return level, nil
}

// LoadConfig reads .env when it exists, then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Log.ZerologLevel(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
