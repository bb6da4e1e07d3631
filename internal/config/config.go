// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"

	"github.com/tinoosan/fuelsplit/internal/slug"
)

// Storage backends selectable through FUELSPLIT_STORE.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP   HTTPConfig
	Log    LogConfig
	Ledger LedgerConfig
	A      ParticipantConfig `envconfig:"FUELSPLIT_PARTICIPANT_A"`
	B      ParticipantConfig `envconfig:"FUELSPLIT_PARTICIPANT_B"`
	Locale LocaleConfig
	Store  StoreConfig
	Redis  RedisConfig
	JWT    JWTConfig
}

type HTTPConfig struct {
	Addr            string        `envconfig:"FUELSPLIT_ADDR" default:":8080"`
	CORSOrigins     []string      `envconfig:"FUELSPLIT_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"FUELSPLIT_SHUTDOWN_TIMEOUT" default:"10s"`
	SecureCookie    bool          `envconfig:"FUELSPLIT_SECURE_COOKIE" default:"true"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// LedgerConfig seeds the state row the first time the service starts.
type LedgerConfig struct {
	PricePerKm       string `envconfig:"FUELSPLIT_PRICE_PER_KM" default:"0.20"`
	StartingOdometer int64  `envconfig:"FUELSPLIT_STARTING_ODOMETER" default:"0"`
}

// Price parses PricePerKm.
func (l LedgerConfig) Price() (decimal.Decimal, error) {
	d, err := decimal.Parse(strings.TrimSpace(l.PricePerKm))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("FUELSPLIT_PRICE_PER_KM: %w", err)
	}
	if !d.IsPos() {
		return decimal.Decimal{}, errors.New("FUELSPLIT_PRICE_PER_KM must be > 0")
	}
	return d, nil
}

// ParticipantConfig describes one side of the pair and its access code.
// Code may be plain text or a bcrypt hash. An empty ID is derived from Name.
type ParticipantConfig struct {
	ID   string
	Name string
	Code string `required:"true"`
}

type LocaleConfig struct {
	Tag        string `envconfig:"FUELSPLIT_LOCALE" default:"en-US"`
	Currency   string `envconfig:"FUELSPLIT_CURRENCY" default:"USD"`
	TimeZone   string `envconfig:"FUELSPLIT_TIMEZONE" default:"UTC"`
	TimeLayout string `envconfig:"FUELSPLIT_TIME_LAYOUT" default:"Jan 2, 2006 3:04 PM"`
}

type StoreConfig struct {
	Backend     string `envconfig:"FUELSPLIT_STORE"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"FUELSPLIT_SQLITE_PATH" default:"fuelsplit.db"`
	Migrate     bool   `envconfig:"FUELSPLIT_MIGRATE" default:"true"`
}

// Kind resolves the backend: explicit setting, else postgres when
// DATABASE_URL is present, else memory.
func (s StoreConfig) Kind() string {
	if b := strings.ToLower(strings.TrimSpace(s.Backend)); b != "" {
		return b
	}
	if strings.TrimSpace(s.DatabaseURL) != "" {
		return BackendPostgres
	}
	return BackendMemory
}

type RedisConfig struct {
	URL      string        `envconfig:"FUELSPLIT_REDIS_URL"`
	LockKey  string        `envconfig:"FUELSPLIT_LOCK_KEY" default:"fuelsplit:ledger:lock"`
	LockTTL  time.Duration `envconfig:"FUELSPLIT_LOCK_TTL" default:"10s"`
	LockWait time.Duration `envconfig:"FUELSPLIT_LOCK_WAIT" default:"3s"`
}

type JWTConfig struct {
	Secret string        `envconfig:"FUELSPLIT_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"FUELSPLIT_JWT_ISSUER" default:"fuelsplit"`
	TTL    time.Duration `envconfig:"FUELSPLIT_SESSION_TTL" default:"720h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.A.ID = participantID(cfg.A, "participant_a")
	cfg.B.ID = participantID(cfg.B, "participant_b")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func participantID(p ParticipantConfig, def string) string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	return slug.FromName(p.Name, def)
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	for _, p := range []ParticipantConfig{c.A, c.B} {
		if !slug.IsSlug(p.ID) {
			return fmt.Errorf("participant id %q must match %s", p.ID, slug.Pattern)
		}
	}
	if c.A.ID == c.B.ID {
		return errors.New("participant ids must differ")
	}
	if c.A.Code == c.B.Code {
		return errors.New("participant codes must differ")
	}
	if _, err := c.Ledger.Price(); err != nil {
		return err
	}
	if c.Ledger.StartingOdometer < 0 {
		return errors.New("FUELSPLIT_STARTING_ODOMETER must be >= 0")
	}
	if _, err := money.ParseCurr(c.Locale.Currency); err != nil {
		return fmt.Errorf("FUELSPLIT_CURRENCY: %w", err)
	}
	if _, err := language.Parse(c.Locale.Tag); err != nil {
		return fmt.Errorf("FUELSPLIT_LOCALE: %w", err)
	}
	if _, err := time.LoadLocation(c.Locale.TimeZone); err != nil {
		return fmt.Errorf("FUELSPLIT_TIMEZONE: %w", err)
	}
	switch c.Store.Kind() {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if len(c.JWT.Secret) < 16 {
		return errors.New("FUELSPLIT_JWT_SECRET must be at least 16 bytes")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("FUELSPLIT_SESSION_TTL must be positive")
	}
	return nil
}
