package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Providers      ProvidersConfig      `yaml:"providers"`
	Defaults       DefaultsConfig       `yaml:"defaults"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Logging        LoggingConfig        `yaml:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	AppName     string   `yaml:"app_name"`
	RefererURL  string   `yaml:"referer_url"`
	CorsOrigins []string `yaml:"cors_origins"`
}

type ProvidersConfig struct {
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// DefaultsConfig holds client-level generation defaults applied when a
// call sets no explicit option.
type DefaultsConfig struct {
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	CacheSize int `yaml:"cache_size"`
}

type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	ReportCaller bool   `yaml:"report_caller"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRequests      uint32        `yaml:"max_requests"`
}

// LoadYAML loads configuration from YAML file with environment variable overrides
func LoadYAML(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = "config.yaml"
	}

	config := getDefaultConfig()

	// Load YAML file if it exists
	if _, err := os.Stat(configPath); err == nil {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in YAML content
		expandedYAML := os.ExpandEnv(string(yamlFile))

		if err := yaml.Unmarshal([]byte(expandedYAML), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		logrus.WithField("config_file", configPath).Info("Loaded configuration from YAML file")
	} else {
		logrus.WithField("config_file", configPath).Warn("Config file not found, using defaults and environment variables")
	}

	// Apply environment variable overrides
	config = applyEnvironmentOverrides(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with sensible defaults
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			AppName:     "LLM Gateway",
			RefererURL:  "https://llm-gateway.local",
			CorsOrigins: []string{"*"},
		},
		Providers: ProvidersConfig{
			Anthropic:  ProviderConfig{},
			OpenRouter: ProviderConfig{},
		},
		Embedding: EmbeddingConfig{
			CacheSize: 1000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "auto",
			ReportCaller: false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          60 * time.Second,
			MaxRequests:      3,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(config *Config) *Config {
	// Server overrides
	if val := os.Getenv("HOST"); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv("APP_NAME"); val != "" {
		config.Server.AppName = val
	}
	if val := os.Getenv("REFERER_URL"); val != "" {
		config.Server.RefererURL = val
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		config.Server.CorsOrigins = strings.Split(val, ",")
		for i := range config.Server.CorsOrigins {
			config.Server.CorsOrigins[i] = strings.TrimSpace(config.Server.CorsOrigins[i])
		}
	}

	// Provider overrides
	if val := os.Getenv("ANTHROPIC_API_KEY"); val != "" {
		config.Providers.Anthropic.APIKey = val
	}
	if val := os.Getenv("ANTHROPIC_BASE_URL"); val != "" {
		config.Providers.Anthropic.BaseURL = val
	}
	if val := os.Getenv("OPENROUTER_API_KEY"); val != "" {
		config.Providers.OpenRouter.APIKey = val
	}
	if val := os.Getenv("OPENROUTER_BASE_URL"); val != "" {
		config.Providers.OpenRouter.BaseURL = val
	}

	// Defaults overrides
	if val := os.Getenv("DEFAULT_MAX_TOKENS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			config.Defaults.MaxTokens = i
		}
	}
	if val := os.Getenv("DEFAULT_TEMPERATURE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			config.Defaults.Temperature = &f
		}
	}

	// Embedding overrides
	if val := os.Getenv("EMBEDDING_CACHE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			config.Embedding.CacheSize = i
		}
	}

	// Logging overrides
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_REPORT_CALLER"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Logging.ReportCaller = b
		}
	}

	// Circuit breaker overrides
	if val := os.Getenv("CIRCUIT_BREAKER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.CircuitBreaker.Enabled = b
		}
	}
	if val := os.Getenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.CircuitBreaker.FailureThreshold = uint32(i)
		}
	}
	if val := os.Getenv("CIRCUIT_BREAKER_SUCCESS_THRESHOLD"); val != "" {
		if i, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.CircuitBreaker.SuccessThreshold = uint32(i)
		}
	}
	if val := os.Getenv("CIRCUIT_BREAKER_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.CircuitBreaker.Timeout = d
		}
	}
	if val := os.Getenv("CIRCUIT_BREAKER_MAX_REQUESTS"); val != "" {
		if i, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.CircuitBreaker.MaxRequests = uint32(i)
		}
	}

	return config
}

// validateConfig validates the configuration and returns errors for invalid values
func validateConfig(config *Config) error {
	var errors []string

	// Credentials are optional here: adapters fall back to their default
	// environment variables at call time. Missing both is only a warning.
	if config.Providers.Anthropic.APIKey == "" && config.Providers.OpenRouter.APIKey == "" {
		logrus.Warn("No provider API key configured; relying on ANTHROPIC_API_KEY/OPENROUTER_API_KEY at call time")
	}

	if config.Defaults.MaxTokens < 0 {
		errors = append(errors, fmt.Sprintf("DEFAULT_MAX_TOKENS must not be negative (current: %d)", config.Defaults.MaxTokens))
	}
	if config.Defaults.Temperature != nil && (*config.Defaults.Temperature < 0 || *config.Defaults.Temperature > 2) {
		errors = append(errors, fmt.Sprintf("DEFAULT_TEMPERATURE must be between 0 and 2 (current: %.2f)", *config.Defaults.Temperature))
	}
	if config.Embedding.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_CACHE_SIZE must not be negative (current: %d)", config.Embedding.CacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Load is a convenience wrapper using the default config path.
func Load() (*Config, error) {
	return LoadYAML("")
}
