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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Normalizer NormalizerConfig `yaml:"normalizer" mapstructure:"normalizer"`
	Validator  ValidatorConfig  `yaml:"validator" mapstructure:"validator"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer" mapstructure:"analyzer"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig configures run-level behavior.
type PipelineConfig struct {
	Version       string `yaml:"version" mapstructure:"version"`
	VendorName    string `yaml:"vendor_name" mapstructure:"vendor_name"`
	VendorVersion string `yaml:"vendor_version" mapstructure:"vendor_version"`
}

// NormalizerConfig configures vendor shape selection.
type NormalizerConfig struct {
	ShapeConfigPath string `yaml:"shape_config_path" mapstructure:"shape_config_path"`
}

// ValidatorConfig configures validation thresholds.
type ValidatorConfig struct {
	CurrencyTolerance  map[string]float64 `yaml:"currency_tolerance" mapstructure:"currency_tolerance"`
	HighTotalThreshold float64            `yaml:"high_total_threshold" mapstructure:"high_total_threshold"`
	RequiredFields     []string           `yaml:"required_fields" mapstructure:"required_fields"`
}

// RouterConfig configures the routing decision gate.
type RouterConfig struct {
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
}

// AnalyzerConfig configures the business analyzer heuristics.
type AnalyzerConfig struct {
	CostPerPage float64 `yaml:"cost_per_page" mapstructure:"cost_per_page"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocs int `yaml:"max_concurrent_docs" mapstructure:"max_concurrent_docs"`
}

// ReportConfig configures the batch result sinks.
type ReportConfig struct {
	ResultsFile  string `yaml:"results_file" mapstructure:"results_file"`
	WorkbookFile string `yaml:"workbook_file" mapstructure:"workbook_file"`
}

// ServerConfig configures the ingestion server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures background metric checks and webhook alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	ReviewRateThreshold  float64 `yaml:"review_rate_threshold" mapstructure:"review_rate_threshold"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
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
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "invoice-triage.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_docs", 5)
	v.SetDefault("pipeline.version", "1.0.0")
	v.SetDefault("pipeline.vendor_name", "vendor_a")
	v.SetDefault("pipeline.vendor_version", "1.0")
	v.SetDefault("validator.high_total_threshold", 100000.0)
	v.SetDefault("validator.currency_tolerance", map[string]float64{
		"USD": 0.01,
		"EUR": 0.01,
		"GBP": 0.01,
	})
	v.SetDefault("validator.required_fields", []string{
		"invoice_number", "invoice_date", "supplier_name", "total",
	})
	v.SetDefault("router.low_confidence_threshold", 0.7)
	v.SetDefault("analyzer.cost_per_page", 0.01)
	v.SetDefault("report.results_file", "results.json")
	v.SetDefault("report.workbook_file", "")
	v.SetDefault("monitoring.review_rate_threshold", 0.5)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

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
