// Package cfg loads backend configuration from a YAML file selected by
// CONFIG_FILE, falling back to environment variables, with env values
// overriding file values either way.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	DataPath   string
	ModelPath  string
	APIPort    int
	LogLevel   string
	TunnelURL  string
	HFToken    string
	HFModel    string
	LLMTimeout time.Duration
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Server struct {
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"server"`

	ML struct {
		ModelPath string `yaml:"modelPath"`
	} `yaml:"ml"`

	LLM struct {
		TunnelURL string `yaml:"tunnelURL"`
		HFModel   string `yaml:"hfModel"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"llm"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`
}

// Load resolves settings from CONFIG_FILE if set, otherwise from the
// environment alone.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	llmTimeout, err := time.ParseDuration(config.LLM.Timeout)
	if err != nil {
		llmTimeout = 60 * time.Second
	}

	settings := Settings{
		DataPath:   getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelPath:  getEnvOrDefault("MODEL_PATH", withDefault(config.ML.ModelPath, "models/tremor_rf.json")),
		APIPort:    getIntFromEnvOrConfig("API_PORT", config.Server.Port, 8000),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", withDefault(config.Server.LogLevel, "info")),
		TunnelURL:  getEnvOrDefault("KAGGLE_MEDGEMMA_URL", config.LLM.TunnelURL),
		HFToken:    os.Getenv("HF_API_TOKEN"),
		HFModel:    getEnvOrDefault("HF_MODEL", withDefault(config.LLM.HFModel, "google/medgemma-4b-it")),
		LLMTimeout: getDurationOrDefault("LLM_TIMEOUT", llmTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:   os.Getenv("DATA_PATH"), // optional; persistence disabled when empty
		ModelPath:  getEnvOrDefault("MODEL_PATH", "models/tremor_rf.json"),
		APIPort:    getIntOrDefault("API_PORT", 8000),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		TunnelURL:  os.Getenv("KAGGLE_MEDGEMMA_URL"),
		HFToken:    os.Getenv("HF_API_TOKEN"),
		HFModel:    getEnvOrDefault("HF_MODEL", "google/medgemma-4b-it"),
		LLMTimeout: getDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func withDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// validateSettings rejects configurations the backend cannot run with.
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.APIPort < 1024 || settings.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1024 and 65535, got %d", settings.APIPort)
	}
	if settings.LLMTimeout < time.Second || settings.LLMTimeout > 5*time.Minute {
		return fmt.Errorf("LLM timeout must be between 1s and 5m, got %v", settings.LLMTimeout)
	}
	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	return nil
}
