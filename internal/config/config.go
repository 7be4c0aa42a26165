package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-pipeline/internal/queue"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apollo     ApolloConfig     `yaml:"apollo" mapstructure:"apollo"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Insight    InsightConfig    `yaml:"insight" mapstructure:"insight"`
	Queues     []queue.Config   `yaml:"queues" mapstructure:"queues"`
	Worker     WorkerConfig     `yaml:"worker" mapstructure:"worker"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool,omitempty" mapstructure:"pool"`
}

// ApolloConfig holds discovery vendor settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotifyConfig holds the outbound notification sinks. Both are optional.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	NotionToken string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDB    string `yaml:"notion_db" mapstructure:"notion_db"`
}

// InsightConfig configures insight generation.
type InsightConfig struct {
	// RulesPath optionally overrides the built-in classification rules
	// with a YAML rule file.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// WorkerConfig configures the background worker.
type WorkerConfig struct {
	// IngestSchedule is a cron expression (with seconds) for the daily
	// ingestion trigger.
	IngestSchedule string `yaml:"ingest_schedule" mapstructure:"ingest_schedule"`
	// DigestSchedule triggers the daily awaiting-approval digest.
	DigestSchedule string `yaml:"digest_schedule" mapstructure:"digest_schedule"`
}

// ServerConfig configures the approval API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("worker.ingest_schedule", "0 0 8 * * *")
	v.SetDefault("worker.digest_schedule", "0 0 17 * * *")

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

	if len(cfg.Queues) == 0 {
		cfg.Queues = queue.DefaultQueues()
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given mode are set.
// Modes: "pipeline" (ingest/worker), "serve", "gate" (approve/reject/pending).
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "pipeline":
		if c.Apollo.Key == "" {
			missing = append(missing, "apollo.key is required (OUTREACH_APOLLO_KEY)")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required (OUTREACH_ANTHROPIC_KEY)")
		}
		if c.Salesforce.ClientID == "" {
			missing = append(missing, "salesforce.client_id is required (OUTREACH_SALESFORCE_CLIENT_ID)")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Salesforce.ClientID == "" {
			missing = append(missing, "salesforce.client_id is required (OUTREACH_SALESFORCE_CLIENT_ID)")
		}
	case "gate":
		// Approving syncs to the CRM synchronously.
		if c.Salesforce.ClientID == "" {
			missing = append(missing, "salesforce.client_id is required (OUTREACH_SALESFORCE_CLIENT_ID)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		missing = append(missing, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required (OUTREACH_STORE_DATABASE_URL)")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
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
