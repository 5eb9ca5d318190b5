// Package config loads, validates and serves the docassist configuration.
//
// The configuration lives in <dir>/.docassist/config.json. A single global
// Config is held in memory behind a mutex and handed out by value from
// GetConfig. Environment variables override file values at load time, and
// an invalid result is fatal.
//
//	err := config.LoadConfig(dir)
//	cfg, err := config.GetConfig()
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
)

//nolint:gochecknoglobals // config singleton
var (
	config     *Config
	projectDir string
	logger     *logx.Logger
	mu         sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

const (
	// SchemaVersion is bumped whenever the file layout changes.
	SchemaVersion = "1.0"

	// ProjectConfigDir holds config.json, secrets.json.enc and the database.
	ProjectConfigDir = ".docassist"
	configFileName   = "config.json"

	DefaultAPIBaseURL    = "http://localhost:8787"
	DefaultAPITimeoutMS  = 30000
	MinAPITimeoutMS      = 1000
	DefaultModel         = "gpt-4.1-mini"
	DefaultListenAddr    = ":8787"
	DefaultDatabaseFile  = "docassist.db"
	DefaultPrometheusURL = "http://localhost:9090"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultLogBufferSize = 1000
	DefaultMaxRetries    = 3
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Environment variables.
const (
	EnvAPIBaseURL   = "DOCASSIST_API_BASE_URL"
	EnvAPITimeoutMS = "DOCASSIST_API_TIMEOUT_MS"
	EnvModel        = "DOCASSIST_MODEL"
	EnvListenAddr   = "DOCASSIST_LISTEN_ADDR"
	EnvDatabasePath = "DOCASSIST_DB_PATH"
	EnvPrometheus   = "DOCASSIST_PROMETHEUS_URL"

	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// ModelInfo is static provider and pricing data for a model.
type ModelInfo struct {
	Provider         string
	InputCPM         float64 // USD per million input tokens
	OutputCPM        float64 // USD per million output tokens
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels maps model names to provider and limits. Unknown models fall
// back to ProviderPatterns.
//
//nolint:gochecknoglobals // static registry
var KnownModels = map[string]ModelInfo{
	"gpt-4.1-mini": {
		Provider:         ProviderOpenAI,
		InputCPM:         0.4,
		OutputCPM:        1.6,
		MaxContextTokens: 1047576,
		MaxOutputTokens:  32768,
	},
	"gpt-4.1": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.0,
		OutputCPM:        8.0,
		MaxContextTokens: 1047576,
		MaxOutputTokens:  32768,
	},
	"gpt-4o": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.5,
		OutputCPM:        10.0,
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
	},
	"o4-mini": {
		Provider:         ProviderOpenAI,
		InputCPM:         1.1,
		OutputCPM:        4.4,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
	"claude-sonnet-4-5": {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-haiku-4-5": {
		Provider:         ProviderAnthropic,
		InputCPM:         1.0,
		OutputCPM:        5.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"gemini-2.5-flash": {
		Provider:         ProviderGoogle,
		InputCPM:         0.30,
		OutputCPM:        2.50,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
}

// ProviderPattern infers a provider from a model name prefix.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

//nolint:gochecknoglobals // inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"phi", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// GetModelProvider returns the provider for modelName, checking KnownModels
// first and then prefix patterns.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match", modelName)
}

// GetModelInfo returns the registry entry for modelName. Unknown models get
// conservative limits and false.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}
	provider, _ := GetModelProvider(modelName) //nolint:errcheck // empty provider is fine here
	return ModelInfo{
		Provider:         provider,
		MaxContextTokens: 32000,
		MaxOutputTokens:  4096,
	}, false
}

// APIConfig is the backend endpoint the submission adapter talks to.
type APIConfig struct {
	BaseURL   string `json:"base_url"`
	TimeoutMS int    `json:"timeout_ms"`
}

// LLMConfig selects the generation model.
type LLMConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxRetries  int     `json:"max_retries"`
	OllamaHost  string  `json:"ollama_host,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	ListenAddr    string `json:"listen_addr"`
	LogBufferSize int    `json:"log_buffer_size"`
}

// StorageConfig locates the SQLite database. Relative paths resolve
// against the .docassist directory.
type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

// MetricsConfig controls Prometheus export and querying.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	PrometheusURL string `json:"prometheus_url"`
}

// Config is the whole configuration file.
type Config struct {
	SchemaVersion string          `json:"schema_version"`
	API           APIConfig       `json:"api"`
	LLM           LLMConfig       `json:"llm"`
	Server        ServerConfig    `json:"server"`
	Storage       StorageConfig   `json:"storage"`
	Metrics       MetricsConfig   `json:"metrics"`
	Sections      sections.Config `json:"sections"`
}

// GetProjectDir returns the directory passed to LoadConfig.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// DatabasePath returns the absolute database path for cfg.
func (c *Config) DatabasePath() string {
	p := c.Storage.DatabasePath
	if p == "" {
		p = DefaultDatabaseFile
	}
	if filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(GetProjectDir(), ProjectConfigDir, p)
}

// GetConfig returns a copy of the loaded config.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call LoadConfig first")
	}
	return *config, nil
}

// SetConfigForTesting replaces the global config. Pass nil to reset.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// LoadConfig reads <dir>/.docassist/config.json into the global config.
// A missing file is created with defaults. An unparseable file is an error
// so user edits are never overwritten.
func LoadConfig(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	projectDir = dir
	configPath := filepath.Join(dir, ProjectConfigDir, configFileName)

	var loaded *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		getLogger().Info("Config file not found, creating %s", configPath)
		loaded = DefaultConfig()
	} else {
		loaded, err = loadConfigFromFile(configPath)
		if err != nil {
			return fmt.Errorf("fatal: config file exists but cannot be parsed: %w", err)
		}
	}

	applyDefaults(loaded)
	if err := SaveConfig(loaded, dir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// Overrides are applied after saving so env values never leak into the file.
	if err := applyEnv(loaded, os.LookupEnv); err != nil {
		return err
	}
	if err := Validate(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	config = loaded
	getLogger().Info("Config loaded: model=%s api=%s", loaded.LLM.Model, loaded.API.BaseURL)
	return nil
}

func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", configPath, err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to <dir>/.docassist/config.json.
func SaveConfig(cfg *Config, dir string) error {
	configPath := filepath.Join(dir, ProjectConfigDir, configFileName)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Metrics:  MetricsConfig{Enabled: true},
		Sections: sections.Default(),
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.API.TimeoutMS == 0 {
		cfg.API.TimeoutMS = DefaultAPITimeoutMS
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = DefaultMaxRetries
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogBufferSize == 0 {
		cfg.Server.LogBufferSize = DefaultLogBufferSize
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDatabaseFile
	}
	if cfg.Metrics.PrometheusURL == "" {
		cfg.Metrics.PrometheusURL = DefaultPrometheusURL
	}
	cfg.Sections = cfg.Sections.Normalize()
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup(EnvAPIBaseURL); ok && v != "" {
		cfg.API.BaseURL = v
	}
	if v, ok := lookup(EnvAPITimeoutMS); ok && v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAPITimeoutMS, v, err)
		}
		cfg.API.TimeoutMS = ms
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		cfg.Server.ListenAddr = v
	}
	if v, ok := lookup(EnvDatabasePath); ok && v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v, ok := lookup(EnvPrometheus); ok && v != "" {
		cfg.Metrics.PrometheusURL = v
	}
	if v, ok := lookup(EnvOllamaHost); ok && v != "" {
		cfg.LLM.OllamaHost = v
	}
	return nil
}

// Validate reports the first problem with cfg.
func Validate(cfg *Config) error {
	if err := validateBaseURL(cfg.API.BaseURL); err != nil {
		return err
	}
	if cfg.API.TimeoutMS < MinAPITimeoutMS {
		return fmt.Errorf("api timeout must be at least %dms, got %d", MinAPITimeoutMS, cfg.API.TimeoutMS)
	}
	if _, err := GetModelProvider(cfg.LLM.Model); err != nil {
		return err
	}
	if cfg.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}
	if cfg.Server.LogBufferSize < 0 {
		return fmt.Errorf("server log_buffer_size must not be negative")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API base URL must be a valid URL: %q", raw)
	}
	return nil
}

// CalculateCost returns the USD cost of a call. Unknown models cost nothing.
func CalculateCost(modelName string, promptTokens, completionTokens int) (float64, error) {
	if info, exists := KnownModels[modelName]; exists {
		inputCost := (float64(promptTokens) / 1_000_000.0) * info.InputCPM
		outputCost := (float64(completionTokens) / 1_000_000.0) * info.OutputCPM
		return inputCost + outputCost, nil
	}
	return 0.0, nil
}

// GetAPIKey returns the key for provider from the secrets file or the
// environment. Ollama returns its host instead.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		mu.RLock()
		defer mu.RUnlock()
		if config != nil && config.LLM.OllamaHost != "" {
			return config.LLM.OllamaHost, nil
		}
		if host := os.Getenv(EnvOllamaHost); host != "" {
			return host, nil
		}
		return DefaultOllamaHost, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables", envVar)
}
