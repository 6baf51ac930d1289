// Package config loads the agent configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the agent.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Data     DataConfig     `mapstructure:"data"     yaml:"data"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// LLMConfig holds the CLOVA Studio connection settings.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"    yaml:"base_url"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	EmbedModel  string  `mapstructure:"embed_model" yaml:"embed_model"`
	APIKey      string  `mapstructure:"api_key"     yaml:"api_key"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// DataConfig locates the listing CSVs and the OHLCV disk cache.
type DataConfig struct {
	KospiCSV        string `mapstructure:"kospi_csv"         yaml:"kospi_csv"`
	KosdaqCSV       string `mapstructure:"kosdaq_csv"        yaml:"kosdaq_csv"`
	AliasCSV        string `mapstructure:"alias_csv"         yaml:"alias_csv"`
	CacheDir        string `mapstructure:"cache_dir"         yaml:"cache_dir"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// ResolverConfig tunes ticker-name resolution.
type ResolverConfig struct {
	FuzzyK        int     `mapstructure:"fuzzy_k"        yaml:"fuzzy_k"`
	EmbedK        int     `mapstructure:"embed_k"        yaml:"embed_k"`
	ConfThreshold float64 `mapstructure:"conf_threshold" yaml:"conf_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.krxagent/config.yaml (home directory)
//  3. /etc/krxagent/config.yaml (system)
//
// Environment variables override config file values.
// Format: KRXAGENT_<SECTION>_<KEY>, e.g., KRXAGENT_API_PORT
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".krxagent"))
	v.AddConfigPath("/etc/krxagent")

	v.SetEnvPrefix("KRXAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("KRXAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults (CLOVA Studio)
	v.SetDefault("llm.base_url", "https://clovastudio.stream.ntruss.com")
	v.SetDefault("llm.model", "HCX-005")
	v.SetDefault("llm.embed_model", "v2")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout_sec", 40)

	// Data defaults
	v.SetDefault("data.kospi_csv", "data/kospi_tickers.csv")
	v.SetDefault("data.kosdaq_csv", "data/kosdaq_tickers.csv")
	v.SetDefault("data.alias_csv", "data/ticker_alias.csv")
	v.SetDefault("data.cache_dir", "data/cache")
	v.SetDefault("data.fetch_timeout_sec", 30)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Resolver defaults
	v.SetDefault("resolver.fuzzy_k", 3)
	v.SetDefault("resolver.embed_k", 3)
	v.SetDefault("resolver.conf_threshold", 0.82)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("KRXAGENT_LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
