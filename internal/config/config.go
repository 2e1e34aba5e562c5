// Package config loads and validates application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadflow/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. MaxConns and MinConns apply
// to the postgres driver only.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScoringConfig holds the tunable tables consumed by the scorer and
// qualifier. Bonus magnitudes are fixed in the scorer package; these are the
// business-facing knobs.
type ScoringConfig struct {
	// HighValueIndustries earn the industry scoring bonus.
	HighValueIndustries []string `yaml:"high_value_industries" mapstructure:"high_value_industries"`
	// TargetIndustries act as a qualification floor: a lead scored below the
	// cold threshold in one of these industries is still tiered Cold.
	TargetIndustries []string `yaml:"target_industries" mapstructure:"target_industries"`
	// QualitySources earn the source bonus.
	QualitySources []string `yaml:"quality_sources" mapstructure:"quality_sources"`
	// UrgencyKeywords searched (case-insensitive) in the lead description.
	UrgencyKeywords []string `yaml:"urgency_keywords" mapstructure:"urgency_keywords"`
	// HomeMarketTokens searched in the lead location.
	HomeMarketTokens []string `yaml:"home_market_tokens" mapstructure:"home_market_tokens"`

	// Tier thresholds on the 0-100 score.
	HotThreshold  int `yaml:"hot_threshold" mapstructure:"hot_threshold"`
	WarmThreshold int `yaml:"warm_threshold" mapstructure:"warm_threshold"`
	ColdThreshold int `yaml:"cold_threshold" mapstructure:"cold_threshold"`
}

// OutreachStepConfig is one configured step of a tier's outreach sequence.
type OutreachStepConfig struct {
	Channel      string `yaml:"channel" mapstructure:"channel"`
	DelayMinutes int    `yaml:"delay_minutes" mapstructure:"delay_minutes"`
	TemplateID   string `yaml:"template_id" mapstructure:"template_id"`
}

// RoutingConfig configures handler capacity defaults and per-tier outreach
// sequences.
type RoutingConfig struct {
	SeniorCapacity  int                             `yaml:"senior_capacity" mapstructure:"senior_capacity"`
	RegularCapacity int                             `yaml:"regular_capacity" mapstructure:"regular_capacity"`
	Sequences       map[string][]OutreachStepConfig `yaml:"sequences" mapstructure:"sequences"`
}

// IngestConfig configures lead feed ingestion.
type IngestConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	FTPTimeoutSecs int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// SalesforceConfig holds Salesforce JWT auth settings for CRM sync.
type SalesforceConfig struct {
	ClientID      string  `yaml:"client_id" mapstructure:"client_id"`
	Username      string  `yaml:"username" mapstructure:"username"`
	KeyPath       string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL      string  `yaml:"login_url" mapstructure:"login_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours      int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	UnqualifiedRateThreshold float64 `yaml:"unqualified_rate_threshold" mapstructure:"unqualified_rate_threshold"`
	WebhookURL               string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadflow.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("batch.max_concurrent_leads", 8)
	v.SetDefault("scoring.high_value_industries", []string{
		"construction", "manufacturing", "healthcare", "professional services",
	})
	v.SetDefault("scoring.target_industries", []string{
		"construction", "manufacturing", "healthcare",
	})
	v.SetDefault("scoring.quality_sources", []string{"referral", "linkedin", "website"})
	v.SetDefault("scoring.urgency_keywords", []string{"urgent", "asap", "immediate", "need now"})
	v.SetDefault("scoring.home_market_tokens", []string{"NY"})
	v.SetDefault("scoring.hot_threshold", 80)
	v.SetDefault("scoring.warm_threshold", 65)
	v.SetDefault("scoring.cold_threshold", 50)
	v.SetDefault("routing.senior_capacity", 2)
	v.SetDefault("routing.regular_capacity", 5)
	v.SetDefault("ingest.user_agent", "leadflow/1.0")
	v.SetDefault("ingest.timeout_secs", 30)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.rate_per_second", 5.0)
	v.SetDefault("ingest.ftp_timeout_secs", 30)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_per_second", 5.0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.unqualified_rate_threshold", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Outreach sequences are structured per tier; viper defaults don't nest
	// cleanly for slices of structs, so fill them post-unmarshal.
	if len(cfg.Routing.Sequences) == 0 {
		cfg.Routing.Sequences = DefaultSequences()
	}

	return &cfg, nil
}

// DefaultSequences returns the stock per-tier outreach sequences.
func DefaultSequences() map[string][]OutreachStepConfig {
	return map[string][]OutreachStepConfig{
		string(model.TierHot): {
			{Channel: "email", DelayMinutes: 0, TemplateID: "urgent_response"},
			{Channel: "call", DelayMinutes: 60, TemplateID: "high_value_followup"},
		},
		string(model.TierWarm): {
			{Channel: "email", DelayMinutes: 0, TemplateID: "warm_introduction"},
			{Channel: "email", DelayMinutes: 2880, TemplateID: "follow_up_1"},
		},
		string(model.TierCold): {
			{Channel: "email", DelayMinutes: 0, TemplateID: "cold_introduction"},
			{Channel: "email", DelayMinutes: 4320, TemplateID: "value_proposition"},
			{Channel: "email", DelayMinutes: 10080, TemplateID: "final_attempt"},
		},
	}
}

// Validate checks the configuration for the named subsystems. It is called
// before any lead is processed; a failure here is fatal at startup since
// there is no safe fallback for the scoring and routing tables.
func (c *Config) Validate(subsystems ...string) error {
	var errs []string

	for _, sub := range subsystems {
		switch sub {
		case "store":
			if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
				errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
			}
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "scoring":
			errs = append(errs, validateScoring(c.Scoring)...)
		case "routing":
			errs = append(errs, validateRouting(c.Routing)...)
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				errs = append(errs, "salesforce.client_id is required")
			}
			if c.Salesforce.Username == "" {
				errs = append(errs, "salesforce.username is required")
			}
			if c.Salesforce.KeyPath == "" {
				errs = append(errs, "salesforce.key_path is required")
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScoring(s ScoringConfig) []string {
	var errs []string
	if len(s.HighValueIndustries) == 0 {
		errs = append(errs, "scoring.high_value_industries must not be empty")
	}
	if s.HotThreshold <= 0 || s.HotThreshold > 100 {
		errs = append(errs, "scoring.hot_threshold must be in (0,100]")
	}
	if s.WarmThreshold <= 0 || s.ColdThreshold <= 0 {
		errs = append(errs, "scoring.warm_threshold and scoring.cold_threshold must be > 0")
	}
	if !(s.HotThreshold > s.WarmThreshold && s.WarmThreshold > s.ColdThreshold) {
		errs = append(errs, fmt.Sprintf(
			"scoring thresholds must be strictly descending hot > warm > cold, got %d/%d/%d",
			s.HotThreshold, s.WarmThreshold, s.ColdThreshold))
	}
	return errs
}

func validateRouting(r RoutingConfig) []string {
	var errs []string
	if r.SeniorCapacity < 0 || r.RegularCapacity < 0 {
		errs = append(errs, "routing capacities must be >= 0")
	}
	for _, tier := range []model.Tier{model.TierHot, model.TierWarm, model.TierCold} {
		seq, ok := r.Sequences[string(tier)]
		if !ok || len(seq) == 0 {
			errs = append(errs, fmt.Sprintf("routing.sequences.%s is required", tier))
			continue
		}
		prev := 0
		for i, step := range seq {
			switch model.Channel(step.Channel) {
			case model.ChannelEmail, model.ChannelCall, model.ChannelSMS:
			default:
				errs = append(errs, fmt.Sprintf("routing.sequences.%s[%d]: unknown channel %q", tier, i, step.Channel))
			}
			if step.TemplateID == "" {
				errs = append(errs, fmt.Sprintf("routing.sequences.%s[%d]: template_id is required", tier, i))
			}
			if step.DelayMinutes < 0 {
				errs = append(errs, fmt.Sprintf("routing.sequences.%s[%d]: delay_minutes must be >= 0", tier, i))
			}
			if step.DelayMinutes < prev {
				errs = append(errs, fmt.Sprintf(
					"routing.sequences.%s[%d]: delay_minutes %d before earlier step at %d",
					tier, i, step.DelayMinutes, prev))
			}
			prev = step.DelayMinutes
		}
	}
	if seq, ok := r.Sequences[string(model.TierUnqualified)]; ok && len(seq) > 0 {
		errs = append(errs, "routing.sequences.unqualified must be empty: unqualified leads get research tasks, not outreach")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
