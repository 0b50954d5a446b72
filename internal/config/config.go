package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Risk      RiskConfig      `yaml:"risk" mapstructure:"risk"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres memory"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required_unless=Driver memory"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the HTTP API and its refresh ticker.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	RefreshIntervalMins int      `yaml:"refresh_interval_mins" mapstructure:"refresh_interval_mins" validate:"min=0"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// FetchConfig configures source fetching.
type FetchConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"min=1"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
}

// FeedConfig is one RSS or Atom source.
type FeedConfig struct {
	Name     string `yaml:"name" mapstructure:"name" validate:"required"`
	URL      string `yaml:"url" mapstructure:"url" validate:"required,url"`
	Category string `yaml:"category" mapstructure:"category" validate:"oneof=official trade google sec"`
}

// FDAPageConfig configures the scraped FDA warning-letter listing.
type FDAPageConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url" validate:"required_if=Enabled true"`
}

// SourcesConfig lists every fetch source.
type SourcesConfig struct {
	Feeds   []FeedConfig  `yaml:"feeds" mapstructure:"feeds" validate:"dive"`
	FDAPage FDAPageConfig `yaml:"fda_page" mapstructure:"fda_page"`
}

// ResolverConfig configures canonical name resolution.
type ResolverConfig struct {
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold" validate:"gt=0,lte=1"`
	MinFuzzyKeyLen     int     `yaml:"min_fuzzy_key_len" mapstructure:"min_fuzzy_key_len" validate:"min=1"`
	Similarity         string  `yaml:"similarity" mapstructure:"similarity" validate:"oneof=levenshtein token_set"`
	KnownCompaniesPath string  `yaml:"known_companies_path" mapstructure:"known_companies_path"`
}

// RegistryConfig configures the company registry and pattern detection.
type RegistryConfig struct {
	MaxViolations     int `yaml:"max_violations" mapstructure:"max_violations" validate:"min=1"`
	HotspotWindowDays int `yaml:"hotspot_window_days" mapstructure:"hotspot_window_days" validate:"min=1"`
	HotspotMin        int `yaml:"hotspot_min" mapstructure:"hotspot_min" validate:"min=2"`
	RepeatOffenderMin int `yaml:"repeat_offender_min" mapstructure:"repeat_offender_min" validate:"min=2"`
}

// RiskConfig holds the risk and compliance scoring weights and windows.
// Component weights should sum to 1.
type RiskConfig struct {
	CountWeight     float64 `yaml:"count_weight" mapstructure:"count_weight"`
	SeverityWeight  float64 `yaml:"severity_weight" mapstructure:"severity_weight"`
	FrequencyWeight float64 `yaml:"frequency_weight" mapstructure:"frequency_weight"`
	ResponseWeight  float64 `yaml:"response_weight" mapstructure:"response_weight"`
	RepeatWeight    float64 `yaml:"repeat_weight" mapstructure:"repeat_weight"`

	WindowDays          int     `yaml:"window_days" mapstructure:"window_days"`
	CountCap            int     `yaml:"count_cap" mapstructure:"count_cap"`
	FrequencyCap        float64 `yaml:"frequency_cap" mapstructure:"frequency_cap"` // violations per month
	ResponseDecayDays   int     `yaml:"response_decay_days" mapstructure:"response_decay_days"`
	DiversityMultiplier float64 `yaml:"diversity_multiplier" mapstructure:"diversity_multiplier"`
	DiversityMinTypes   int     `yaml:"diversity_min_types" mapstructure:"diversity_min_types"`
	BurstMultiplier     float64 `yaml:"burst_multiplier" mapstructure:"burst_multiplier"`
	BurstThreshold      int     `yaml:"burst_threshold" mapstructure:"burst_threshold"`

	ComplianceWindowDays int     `yaml:"compliance_window_days" mapstructure:"compliance_window_days"`
	CompliancePenalty    float64 `yaml:"compliance_penalty" mapstructure:"compliance_penalty"`
	HighSeverity         int     `yaml:"high_severity" mapstructure:"high_severity"`
	HighSeverityFactor   float64 `yaml:"high_severity_factor" mapstructure:"high_severity_factor"`
	MidSeverity          int     `yaml:"mid_severity" mapstructure:"mid_severity"`
	MidSeverityFactor    float64 `yaml:"mid_severity_factor" mapstructure:"mid_severity_factor"`
	HistoricalPenalty    float64 `yaml:"historical_penalty" mapstructure:"historical_penalty"`
	HistoricalPenaltyCap float64 `yaml:"historical_penalty_cap" mapstructure:"historical_penalty_cap"`
	CleanBonus           float64 `yaml:"clean_bonus" mapstructure:"clean_bonus"`
}

// NotifyConfig configures new-violation alerting.
type NotifyConfig struct {
	WebhookURL       string   `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	MinSeverity      int      `yaml:"min_severity" mapstructure:"min_severity" validate:"min=0,max=10"`
	Watchlist        []string `yaml:"watchlist" mapstructure:"watchlist"`
	NotionToken      string   `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDatabaseID string   `yaml:"notion_database_id" mapstructure:"notion_database_id" validate:"required_with=NotionToken"`
}

// EnrichConfig configures contact enrichment.
type EnrichConfig struct {
	HunterKey     string `yaml:"hunter_key" mapstructure:"hunter_key"`
	HunterBaseURL string `yaml:"hunter_base_url" mapstructure:"hunter_base_url" validate:"omitempty,url"`
	MaxContacts   int    `yaml:"max_contacts" mapstructure:"max_contacts" validate:"min=0"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
}

// AnthropicConfig configures item summarization. An empty key disables it.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
}

var validate = validator.New()

// Validate checks struct-level constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FDAWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fda-watch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_interval_mins", 60)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_concurrent", 4)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.user_agent", "fda-watch/1.0 (+https://github.com/sells-group/fda-watch)")
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("sources.feeds", defaultFeeds())
	v.SetDefault("sources.fda_page.enabled", true)
	v.SetDefault("sources.fda_page.url", "https://www.fda.gov/inspections-compliance-enforcement-and-criminal-investigations/compliance-actions-and-activities/warning-letters")
	v.SetDefault("resolver.fuzzy_threshold", 0.85)
	v.SetDefault("resolver.min_fuzzy_key_len", 4)
	v.SetDefault("resolver.similarity", "levenshtein")
	v.SetDefault("registry.max_violations", 100)
	v.SetDefault("registry.hotspot_window_days", 90)
	v.SetDefault("registry.hotspot_min", 2)
	v.SetDefault("registry.repeat_offender_min", 3)
	v.SetDefault("risk.count_weight", 0.3)
	v.SetDefault("risk.severity_weight", 0.3)
	v.SetDefault("risk.frequency_weight", 0.2)
	v.SetDefault("risk.response_weight", 0.1)
	v.SetDefault("risk.repeat_weight", 0.1)
	v.SetDefault("risk.window_days", 730)
	v.SetDefault("risk.count_cap", 10)
	v.SetDefault("risk.frequency_cap", 2.0)
	v.SetDefault("risk.response_decay_days", 365)
	v.SetDefault("risk.diversity_multiplier", 1.5)
	v.SetDefault("risk.diversity_min_types", 2)
	v.SetDefault("risk.burst_multiplier", 1.3)
	v.SetDefault("risk.burst_threshold", 3)
	v.SetDefault("risk.compliance_window_days", 182)
	v.SetDefault("risk.compliance_penalty", 10.0)
	v.SetDefault("risk.high_severity", 8)
	v.SetDefault("risk.high_severity_factor", 2.0)
	v.SetDefault("risk.mid_severity", 6)
	v.SetDefault("risk.mid_severity_factor", 1.5)
	v.SetDefault("risk.historical_penalty", 2.0)
	v.SetDefault("risk.historical_penalty_cap", 30.0)
	v.SetDefault("risk.clean_bonus", 5.0)
	v.SetDefault("notify.min_severity", 0)
	v.SetDefault("enrich.hunter_base_url", "https://api.hunter.io/v2")
	v.SetDefault("enrich.max_contacts", 5)
	v.SetDefault("enrich.timeout_secs", 20)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)

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

	return &cfg, nil
}

func defaultFeeds() []map[string]any {
	return []map[string]any{
		{
			"name":     "FDA Press Releases",
			"url":      "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/press-releases/rss.xml",
			"category": "official",
		},
		{
			"name":     "FDA Recalls",
			"url":      "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/recalls/rss.xml",
			"category": "official",
		},
		{
			"name":     "FiercePharma",
			"url":      "https://www.fiercepharma.com/rss/xml",
			"category": "trade",
		},
		{
			"name":     "Google News: FDA warning letter",
			"url":      "https://news.google.com/rss/search?q=%22FDA+warning+letter%22&hl=en-US&gl=US&ceid=US:en",
			"category": "google",
		},
		{
			"name":     "Google News: complete response letter",
			"url":      "https://news.google.com/rss/search?q=%22complete+response+letter%22&hl=en-US&gl=US&ceid=US:en",
			"category": "google",
		},
	}
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
