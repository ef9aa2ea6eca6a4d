package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	Env     string `mapstructure:"ENV"`
	AppName string `mapstructure:"APP_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// memory | postgres | redis
	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string `mapstructure:"DB_DSN"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Si viene vacío, el API corre en modo dev (X-Debug-User-ID).
	JWTSecret   string `mapstructure:"AUTH_JWT_SECRET"`
	JWTIssuer   string `mapstructure:"AUTH_JWT_ISSUER"`
	JWTAudience string `mapstructure:"AUTH_JWT_AUDIENCE"`

	DefaultTimezone string `mapstructure:"DEFAULT_TIMEZONE"`

	TickInterval     time.Duration `mapstructure:"TICK_INTERVAL"`
	LookaheadWindow  time.Duration `mapstructure:"DOSE_LOOKAHEAD"`
	EscalationWindow time.Duration `mapstructure:"DOSE_ESCALATION_WINDOW"`

	LowStockCoverageDays int `mapstructure:"LOW_STOCK_COVERAGE_DAYS"`

	TrendWindowReadings  int           `mapstructure:"TREND_WINDOW_READINGS"`
	TrendWindowSpan      time.Duration `mapstructure:"TREND_WINDOW_SPAN"`
	TrendSpreadMultiple  float64       `mapstructure:"TREND_SPREAD_MULTIPLE"`
	TrendSevereMultiple  float64       `mapstructure:"TREND_SEVERE_MULTIPLE"`
	TrendMinHistory      int           `mapstructure:"TREND_MIN_HISTORY"`
	TrendMinSpreadFactor float64       `mapstructure:"TREND_MIN_SPREAD_FRACTION"`
	WellbeingLowCount    int           `mapstructure:"TREND_WELLBEING_LOW_COUNT"`
	DriftMinReadings     int           `mapstructure:"DRIFT_MIN_READINGS"`
	DriftMinChange       float64       `mapstructure:"DRIFT_MIN_CHANGE"`
	// formato: "blood-sugar:70:180,blood-pressure::140"
	VitalLimits string `mapstructure:"VITAL_LIMITS"`

	// template | anthropic | openai
	ExplainerProvider string `mapstructure:"EXPLAINER_PROVIDER"`
	ExplainerModel    string `mapstructure:"EXPLAINER_MODEL"`
	AnthropicAPIKey   string `mapstructure:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey      string `mapstructure:"OPENAI_API_KEY"`

	WebhookURL     string        `mapstructure:"NOTIFY_WEBHOOK_URL"`
	WebhookToken   string        `mapstructure:"NOTIFY_WEBHOOK_TOKEN"`
	WebhookSecret  string        `mapstructure:"NOTIFY_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `mapstructure:"NOTIFY_WEBHOOK_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"ENV":                       "development",
	"APP_NAME":                  "medication-adherence",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "text",
	"STORE_DRIVER":              "",
	"DB_DSN":                    "",
	"REDIS_URL":                 "",
	"REDIS_KEY_PREFIX":          "adherence",
	"CORS_ORIGINS":              "*",
	"AUTH_JWT_SECRET":           "",
	"AUTH_JWT_ISSUER":           "",
	"AUTH_JWT_AUDIENCE":         "",
	"DEFAULT_TIMEZONE":          "UTC",
	"TICK_INTERVAL":             30 * time.Second,
	"DOSE_LOOKAHEAD":            30 * time.Minute,
	"DOSE_ESCALATION_WINDOW":    2 * time.Hour,
	"LOW_STOCK_COVERAGE_DAYS":   3,
	"TREND_WINDOW_READINGS":     14,
	"TREND_WINDOW_SPAN":         14 * 24 * time.Hour,
	"TREND_SPREAD_MULTIPLE":     2.0,
	"TREND_SEVERE_MULTIPLE":     3.0,
	"TREND_MIN_HISTORY":         3,
	"TREND_MIN_SPREAD_FRACTION": 0.0,
	"TREND_WELLBEING_LOW_COUNT": 2,
	"DRIFT_MIN_READINGS":        4,
	"DRIFT_MIN_CHANGE":          0.05,
	"VITAL_LIMITS":              "",
	"EXPLAINER_PROVIDER":        "template",
	"EXPLAINER_MODEL":           "",
	"ANTHROPIC_API_KEY":         "",
	"OPENAI_API_KEY":            "",
	"NOTIFY_WEBHOOK_URL":        "",
	"NOTIFY_WEBHOOK_TOKEN":      "",
	"NOTIFY_WEBHOOK_SECRET":     "",
	"NOTIFY_WEBHOOK_TIMEOUT":    5 * time.Second,
}

// Load lee config desde env y, opcionalmente, un archivo (.env/.yaml/.json).
// Con path vacío intenta ".env" y sigue si no existe.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k)
	}

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(".env")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedStoreDriver infiere el backend si STORE_DRIVER no viene.
func (c *Config) ResolvedStoreDriver() string {
	if d := strings.ToLower(strings.TrimSpace(c.StoreDriver)); d != "" {
		return d
	}
	if c.RedisURL != "" {
		return "redis"
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

func (c *Config) Validate() error {
	var errs []error

	switch c.ResolvedStoreDriver() {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_DSN is required for STORE_DRIVER=postgres"))
		}
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for STORE_DRIVER=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be memory, postgres or redis, got %q", c.StoreDriver))
	}

	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("TICK_INTERVAL must be positive"))
	}
	if c.LookaheadWindow <= 0 || c.EscalationWindow <= 0 {
		errs = append(errs, errors.New("dose windows must be positive"))
	}
	if c.TrendWindowReadings < 2 || c.TrendMinHistory < 1 {
		errs = append(errs, errors.New("trend window too small"))
	}

	switch strings.ToLower(c.ExplainerProvider) {
	case "", "template":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for EXPLAINER_PROVIDER=anthropic"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for EXPLAINER_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EXPLAINER_PROVIDER %q", c.ExplainerProvider))
	}

	if !c.IsDev() && c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required outside development"))
	}

	return errors.Join(errs...)
}
