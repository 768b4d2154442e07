package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Tax    TaxConfig    `yaml:"tax" mapstructure:"tax"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the upstream feature service.
type SourceConfig struct {
	Endpoint           string   `yaml:"endpoint" mapstructure:"endpoint"`
	CandidateEndpoints []string `yaml:"candidate_endpoints" mapstructure:"candidate_endpoints"`
	PageSize           int      `yaml:"page_size" mapstructure:"page_size"`
	MaxRecords         int      `yaml:"max_records" mapstructure:"max_records"`
	TimeoutSecs        int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int      `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit          float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent          string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// DataConfig configures local data layout and overrides.
type DataConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	SchemaFile string `yaml:"schema_file" mapstructure:"schema_file"`
	AreasFile  string `yaml:"areas_file" mapstructure:"areas_file"`
}

// TaxConfig holds the tax-estimate parameters.
type TaxConfig struct {
	// MillRate overrides the schema file's rate when > 0. Dollars of tax
	// per dollar of assessed value (0.025 = $25 per $1,000).
	MillRate float64 `yaml:"mill_rate" mapstructure:"mill_rate"`
}

// ServeConfig configures the read-only HTTP API.
type ServeConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given mode.
// Mode is the command family: "fetch" needs a reachable source, "serve"
// needs a listen address, "local" commands only need the data layout.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		if c.Source.Endpoint == "" {
			problems = append(problems, "source.endpoint is required")
		}
		if c.Source.PageSize < 1 || c.Source.PageSize > 10000 {
			problems = append(problems, "source.page_size must be between 1 and 10000")
		}
		if c.Source.TimeoutSecs <= 0 {
			problems = append(problems, "source.timeout_secs must be > 0")
		}
		if c.Source.MaxRetries < 0 {
			problems = append(problems, "source.max_retries must be >= 0")
		}
		if c.Source.RateLimit <= 0 {
			problems = append(problems, "source.rate_limit must be > 0")
		}
	case "serve":
		if c.Serve.Addr == "" {
			problems = append(problems, "serve.addr is required")
		}
	case "local":
		// Falls through to the shared checks below.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Data.Dir == "" {
		problems = append(problems, "data.dir is required")
	}
	if c.Tax.MillRate < 0 {
		problems = append(problems, "tax.mill_rate must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
	v.SetEnvPrefix("PARCELS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.endpoint", "https://services6.arcgis.com/DZHaqZm9cxOD4CWM/arcgis/rest/services/Tax_Parcels/FeatureServer/0")
	v.SetDefault("source.candidate_endpoints", []string{
		"https://services6.arcgis.com/DZHaqZm9cxOD4CWM/arcgis/rest/services/Tax_Parcels/FeatureServer/0",
		"https://gisservices.its.ny.gov/arcgis/rest/services/NYS_Tax_Parcels_Public/MapServer/1",
		"https://services1.arcgis.com/vHnIGBHHqDR6y0CR/arcgis/rest/services/NYS_Tax_Parcels/FeatureServer/0",
	})
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.max_records", 0)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 1)
	v.SetDefault("source.rate_limit", 4.0)
	v.SetDefault("source.user_agent", "parcel-cli/1.0 (Lanesville property research)")
	v.SetDefault("data.dir", "./data")
	v.SetDefault("tax.mill_rate", 0.0)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
