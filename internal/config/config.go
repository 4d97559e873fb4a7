// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Analysis() AnalysisConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)

	// Analysis Setters
	SetAnalysisConcurrency(int)
	SetAnalysisReportUnknown(bool)
	SetAnalysisMaxCallDepth(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	// ScanCfg gets its marching orders from CLI flags, not the config file.
	ScanCfg ScanConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Analysis() AnalysisConfig { return c.AnalysisCfg }
func (c *Config) Scan() ScanConfig         { return c.ScanCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetScanConfig(sc ScanConfig) { c.ScanCfg = sc }

// Analysis Setters
func (c *Config) SetAnalysisConcurrency(n int)    { c.AnalysisCfg.Concurrency = n }
func (c *Config) SetAnalysisReportUnknown(b bool) { c.AnalysisCfg.ReportUnknown = b }
func (c *Config) SetAnalysisMaxCallDepth(n int)   { c.AnalysisCfg.MaxCallDepth = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AnalysisConfig tunes the PHP taint analysis.
type AnalysisConfig struct {
	// Concurrency is the number of files analysed in parallel.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// MaxCallDepth bounds nested function summary construction.
	MaxCallDepth int `mapstructure:"max_call_depth" yaml:"max_call_depth"`
	// ReportUnknown emits low-confidence findings for sinks reached by
	// values that could not be resolved.
	ReportUnknown bool `mapstructure:"report_unknown" yaml:"report_unknown"`
	// Extensions selects which files a directory walk picks up.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	// MaxFileSize skips files larger than this many bytes. Zero disables
	// the limit.
	MaxFileSize int64         `mapstructure:"max_file_size" yaml:"max_file_size"`
	Sources     SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Sinks       []SinkConfig  `mapstructure:"sinks" yaml:"sinks"`
}

// SourcesConfig extends the built-in taint sources and sanitizers.
type SourcesConfig struct {
	InputVariables []string          `mapstructure:"input_variables" yaml:"input_variables"`
	InputFunctions []string          `mapstructure:"input_functions" yaml:"input_functions"`
	Sanitizers     []SanitizerConfig `mapstructure:"sanitizers" yaml:"sanitizers"`
}

// SanitizerConfig declares a sanitizer, or with Reverses set, a function
// that undoes one.
type SanitizerConfig struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Protects []string `mapstructure:"protects" yaml:"protects"`
	Reverses string   `mapstructure:"reverses" yaml:"reverses"`
}

// SinkConfig declares an additional sink.
type SinkConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"`
	Args []int  `mapstructure:"args" yaml:"args"`
}

// ScanConfig holds settings for the current scan job, populated from CLI
// flags.
type ScanConfig struct {
	Targets []string
	Format  string
	Output  string
	ScanID  string
	// FailOnFindings makes the scan command exit non-zero when anything
	// is reported.
	FailOnFindings bool
}

// NewDefaultConfig creates a new configuration with sensible defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "phortress")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Analysis --
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.max_call_depth", 32)
	v.SetDefault("analysis.report_unknown", false)
	v.SetDefault("analysis.extensions", []string{".php", ".phtml", ".inc"})
	v.SetDefault("analysis.max_file_size", 4<<20)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.BindEnv("logger.log_file", "PHORTRESS_LOG_FILE")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile == "" {
		cfg.LoggerCfg.LogFile = os.Getenv("PHORTRESS_LOG_FILE")
	}
	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("expanding logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AnalysisCfg.Validate(); err != nil {
		return fmt.Errorf("analysis configuration invalid: %w", err)
	}
	return nil
}

// validClasses are the vulnerability classes sinks and sanitizers may name.
var validClasses = map[string]bool{
	"xss":               true,
	"sql_injection":     true,
	"command_injection": true,
	"file_inclusion":    true,
	"code_injection":    true,
	"header_injection":  true,
	"path_traversal":    true,
	"*":                 true,
}

// Validate checks the analysis configuration.
func (a *AnalysisConfig) Validate() error {
	if a.Concurrency <= 0 {
		return fmt.Errorf("analysis.concurrency must be a positive integer")
	}
	if a.MaxCallDepth <= 0 {
		return fmt.Errorf("analysis.max_call_depth must be a positive integer")
	}
	if a.MaxFileSize < 0 {
		return fmt.Errorf("analysis.max_file_size must not be negative")
	}
	for _, ext := range a.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("analysis.extensions entry %q must start with a dot", ext)
		}
	}
	for i, s := range a.Sources.Sanitizers {
		if s.Name == "" {
			return fmt.Errorf("analysis.sources.sanitizers[%d].name is required", i)
		}
		if s.Reverses == "" && len(s.Protects) == 0 {
			return fmt.Errorf("analysis.sources.sanitizers[%d] (%s) must set protects or reverses", i, s.Name)
		}
		for _, class := range s.Protects {
			if !validClasses[class] {
				return fmt.Errorf("analysis.sources.sanitizers[%d] (%s) protects unknown class %q", i, s.Name, class)
			}
		}
	}
	for i, s := range a.Sinks {
		if s.Name == "" {
			return fmt.Errorf("analysis.sinks[%d].name is required", i)
		}
		if !validClasses[s.Type] || s.Type == "*" {
			return fmt.Errorf("analysis.sinks[%d] (%s) has unknown type %q", i, s.Name, s.Type)
		}
		for _, arg := range s.Args {
			if arg < 0 {
				return fmt.Errorf("analysis.sinks[%d] (%s) argument positions must not be negative", i, s.Name)
			}
		}
	}
	return nil
}
