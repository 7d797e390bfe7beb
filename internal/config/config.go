// Package config provides configuration management for Jarvis.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/inertz/Jarvis/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Assistant AssistantConfig     `mapstructure:"assistant"`
	Providers map[string]Provider `mapstructure:"providers"`
	Speech    SpeechConfig        `mapstructure:"speech"`
	Logging   LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// AssistantConfig configures conversation behaviour.
type AssistantConfig struct {
	// Provider selects the reply backend: local, openai, deepseek,
	// gemini, or openrouter.
	Provider      string `mapstructure:"provider"`
	AudioOutput   bool   `mapstructure:"audio_output"`
	HistoryWindow int    `mapstructure:"history_window"`

	// Pacing delays. Thinking bounds the randomized pause before a
	// reply is surfaced; Settle is the pause after a capture result.
	ThinkingMin time.Duration `mapstructure:"thinking_min"`
	ThinkingMax time.Duration `mapstructure:"thinking_max"`
	Settle      time.Duration `mapstructure:"settle"`
}

// Provider configures one remote reply backend.
type Provider struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Enabled     bool          `mapstructure:"enabled"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLM converts to the adapter configuration, filling the API key from
// the provider's environment variable when the file left it empty.
func (p Provider) LLM(name string) *llm.ProviderConfig {
	key := p.APIKey
	if key == "" {
		key = llm.APIKeyFromEnv(name)
	}
	return &llm.ProviderConfig{
		Name:        name,
		Endpoint:    p.Endpoint,
		APIKey:      key,
		Model:       p.Model,
		Enabled:     p.Enabled,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Timeout:     p.Timeout,
	}
}

// SpeechConfig configures playback rendering.
type SpeechConfig struct {
	Voice  string  `mapstructure:"voice"`
	Rate   float64 `mapstructure:"rate"`
	Pitch  float64 `mapstructure:"pitch"`
	Volume float64 `mapstructure:"volume"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// DefaultConfig returns sensible default configuration: the local
// responder active, audio on, and every remote provider pre-wired to
// its public endpoint but disabled until a key is supplied.
func DefaultConfig() *Config {
	providers := make(map[string]Provider, len(llm.RemoteProviders))
	for _, name := range llm.RemoteProviders {
		d := llm.DefaultConfig(name)
		providers[name] = Provider{
			Endpoint:    d.Endpoint,
			Model:       d.Model,
			MaxTokens:   d.MaxTokens,
			Temperature: d.Temperature,
			Timeout:     d.Timeout,
		}
	}
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Assistant: AssistantConfig{
			Provider:      "local",
			AudioOutput:   true,
			HistoryWindow: 20,
			ThinkingMin:   500 * time.Millisecond,
			ThinkingMax:   1500 * time.Millisecond,
			Settle:        500 * time.Millisecond,
		},
		Providers: providers,
		Speech: SpeechConfig{
			Rate:   0.9,
			Pitch:  1.0,
			Volume: 0.8,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from file and environment. A missing config
// file is created from the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := ConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("JARVIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the config directory.
func Save(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("server", cfg.Server)
	viper.Set("assistant", cfg.Assistant)
	viper.Set("providers", cfg.Providers)
	viper.Set("speech", cfg.Speech)
	viper.Set("logging", cfg.Logging)

	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// Watch reloads configuration whenever the file changes on disk and
// hands the fresh copy to onChange.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".jarvis"), nil
}
