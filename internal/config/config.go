package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	appName   = "schema-rag"
	envPrefix = "SCHEMA_RAG_"
)

// Config represents the application configuration
type Config struct {
	Schemas   SchemasConfig   `json:"schemas"   toml:"schemas"`
	Index     IndexConfig     `json:"index"     toml:"index"`
	Embedding EmbeddingConfig `json:"embedding" toml:"embedding"`
	LLM       LLMConfig       `json:"llm"       toml:"llm"`
	Retrieval RetrievalConfig `json:"retrieval" toml:"retrieval"`
	Agent     AgentConfig     `json:"agent"     toml:"agent"`
	Logging   LoggingConfig   `json:"logging"   toml:"logging"`
	Metrics   MetricsConfig   `json:"metrics"   toml:"metrics"`
	Debug     DebugConfig     `json:"debug"     toml:"debug"`
}

// SchemasConfig locates the schema description files
type SchemasConfig struct {
	Directory string `json:"directory" toml:"directory" env:"SCHEMAS_DIR"     envDefault:"schemas"`
	Pattern   string `json:"pattern"   toml:"pattern"   env:"SCHEMAS_PATTERN" envDefault:"*.json"`
}

// IndexConfig represents the persistent vector index configuration
type IndexConfig struct {
	Backend        string `json:"backend"         toml:"backend"         env:"INDEX_BACKEND"         envDefault:"duckdb"` // duckdb, sqlite, memory
	Path           string `json:"path"            toml:"path"            env:"DB_PATH"               envDefault:"~/.config/schema-rag/index.db"`
	Collection     string `json:"collection"      toml:"collection"      env:"INDEX_COLLECTION"      envDefault:"database_schemas"`
	MaxConnections int    `json:"max_connections" toml:"max_connections" env:"DB_MAX_CONNECTIONS"    envDefault:"4"`
	QueryTimeout   string `json:"query_timeout"   toml:"query_timeout"   env:"DB_QUERY_TIMEOUT"      envDefault:"30s"`
}

// EmbeddingConfig represents embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `json:"provider"   toml:"provider"   env:"EMBEDDING_PROVIDER"   envDefault:"hash"` // hash, ollama, openai
	Model      string `json:"model"      toml:"model"      env:"EMBEDDING_MODEL"      envDefault:"nomic-embed-text"`
	Dimensions int    `json:"dimensions" toml:"dimensions" env:"EMBEDDING_DIMENSIONS" envDefault:"384"`
	BaseURL    string `json:"base_url"   toml:"base_url"   env:"EMBEDDING_BASE_URL"`
	APIKey     string `json:"-"          toml:"-"          env:"EMBEDDING_API_KEY"`
	Timeout    string `json:"timeout"    toml:"timeout"    env:"EMBEDDING_TIMEOUT"    envDefault:"60s"`

	// Vectors from remote providers are cached on disk; an empty dir disables it
	CacheDir       string `json:"cache_dir"         toml:"cache_dir"         env:"EMBEDDING_CACHE_DIR"         envDefault:"~/.config/schema-rag/cache/embeddings"`
	CacheTTL       string `json:"cache_ttl"         toml:"cache_ttl"         env:"EMBEDDING_CACHE_TTL"         envDefault:"720h"`
	CacheMaxSizeMB int    `json:"cache_max_size_mb" toml:"cache_max_size_mb" env:"EMBEDDING_CACHE_MAX_SIZE_MB" envDefault:"100"`
}

// LLMConfig represents language-model provider configuration
type LLMConfig struct {
	Provider    string  `json:"provider"    toml:"provider"    env:"LLM_PROVIDER"    envDefault:"ollama"` // openai, anthropic, ollama
	Model       string  `json:"model"       toml:"model"       env:"LLM_MODEL"       envDefault:"llama3.2"`
	BaseURL     string  `json:"base_url"    toml:"base_url"    env:"LLM_BASE_URL"`
	APIKey      string  `json:"-"           toml:"-"           env:"LLM_API_KEY"`
	Temperature float64 `json:"temperature" toml:"temperature" env:"LLM_TEMPERATURE" envDefault:"0"`
	MaxTokens   int     `json:"max_tokens"  toml:"max_tokens"  env:"LLM_MAX_TOKENS"  envDefault:"2048"`
	Timeout     string  `json:"timeout"     toml:"timeout"     env:"LLM_TIMEOUT"     envDefault:"120s"`
}

// RetrievalConfig controls schema retrieval
type RetrievalConfig struct {
	TopK int `json:"top_k" toml:"top_k" env:"TOP_K" envDefault:"5"`
}

// AgentConfig controls conversation history for the SQL agent
type AgentConfig struct {
	HistoryEnabled    bool `json:"history_enabled"     toml:"history_enabled"     env:"HISTORY_ENABLED"     envDefault:"true"`
	MaxHistory        int  `json:"max_history"         toml:"max_history"         env:"MAX_HISTORY"         envDefault:"10"`
	HistoryInPrompt   int  `json:"history_in_prompt"   toml:"history_in_prompt"   env:"HISTORY_IN_PROMPT"   envDefault:"3"`
	SummarizeOldTurns bool `json:"summarize_old_turns" toml:"summarize_old_turns" env:"SUMMARIZE_OLD_TURNS" envDefault:"true"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      toml:"level"      env:"LOG_LEVEL"      envDefault:"info"`   // debug, info, warn, error
	Format    string `json:"format"     toml:"format"     env:"LOG_FORMAT"     envDefault:"text"`   // text, json
	Output    string `json:"output"     toml:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"` // stdout, stderr, file
	File      string `json:"file"       toml:"file"       env:"LOG_FILE"       envDefault:"~/.config/schema-rag/logs/app.log"`
	AddSource bool   `json:"add_source" toml:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `json:"textfile_path" toml:"textfile_path" env:"METRICS_TEXTFILE"`
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" env:"DEBUG"   envDefault:"false"`
	Verbose bool `json:"verbose" toml:"verbose" env:"VERBOSE" envDefault:"false"`
}

// DefaultConfig returns the configuration produced by defaults alone
func DefaultConfig() *Config {
	cfg := &Config{}
	// Defaults come from envDefault tags; an empty environment map keeps the
	// process environment out of it.
	_ = env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix, Environment: map[string]string{}})

	return cfg
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides.
// Precedence, lowest first: defaults, config file, environment, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := DefaultConfig()

	configPath := getConfigPath(flagOverrides)
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	config.ExpandAllPaths()

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvironment overlays only the variables that are actually set, so
// envDefault values never clobber settings from the config file.
func applyEnvironment(config *Config) error {
	set := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, envPrefix) {
			set[key] = value
		}
	}

	if len(set) == 0 {
		return nil
	}

	var fromEnv Config
	if err := env.ParseWithOptions(&fromEnv, env.Options{Prefix: envPrefix, Environment: set}); err != nil {
		return err
	}

	overlayEnvFields(reflect.ValueOf(config).Elem(), reflect.ValueOf(&fromEnv).Elem(), set)

	return nil
}

// overlayEnvFields copies a field from source only when its variable is present
func overlayEnvFields(target, source reflect.Value, set map[string]string) {
	for i := range target.NumField() {
		field := target.Type().Field(i)

		if field.Type.Kind() == reflect.Struct {
			overlayEnvFields(target.Field(i), source.Field(i), set)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		if _, ok := set[envPrefix+name]; ok {
			target.Field(i).Set(source.Field(i))
		}
	}
}

// loadConfigFromFile loads configuration from a JSON or TOML file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		if err := toml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) error {
	for key, value := range overrides {
		switch key {
		case "schemas-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Schemas.Directory = str
			}
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Index.Path = str
			}
		case "backend":
			if str, ok := value.(string); ok && str != "" {
				config.Index.Backend = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		case "top-k":
			if n, ok := value.(int); ok && n > 0 {
				config.Retrieval.TopK = n
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Debug.Verbose = true
			}
		case "debug":
			if b, ok := value.(bool); ok && b {
				config.Debug.Enabled = true
			}
		case "config":
			// consumed by getConfigPath
		default:
			return fmt.Errorf("unknown override: %s", key)
		}
	}

	return nil
}

// mergeConfigs copies every non-zero field of source into target
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	validBackends := map[string]bool{"duckdb": true, "sqlite": true, "memory": true}
	if !validBackends[config.Index.Backend] {
		return fmt.Errorf("invalid index backend: %s (must be duckdb, sqlite, or memory)", config.Index.Backend)
	}

	validEmbedders := map[string]bool{"hash": true, "ollama": true, "openai": true}
	if !validEmbedders[config.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %s (must be hash, ollama, or openai)", config.Embedding.Provider)
	}

	validLLMs := map[string]bool{"openai": true, "anthropic": true, "ollama": true}
	if !validLLMs[config.LLM.Provider] {
		return fmt.Errorf("invalid llm provider: %s (must be openai, anthropic, or ollama)", config.LLM.Provider)
	}

	for name, value := range map[string]string{
		"index query timeout": config.Index.QueryTimeout,
		"embedding timeout":   config.Embedding.Timeout,
		"embedding cache ttl": config.Embedding.CacheTTL,
		"llm timeout":         config.LLM.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Schemas.Directory == "" {
		return fmt.Errorf("schemas directory must not be empty")
	}

	if _, err := filepath.Match(config.Schemas.Pattern, "x.json"); err != nil {
		return fmt.Errorf("invalid schemas pattern %q: %w", config.Schemas.Pattern, err)
	}

	if config.Index.MaxConnections <= 0 {
		return fmt.Errorf("index max connections must be positive: %d", config.Index.MaxConnections)
	}

	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Embedding.Dimensions)
	}

	if config.Embedding.CacheMaxSizeMB < 0 {
		return fmt.Errorf("embedding cache size must not be negative: %d", config.Embedding.CacheMaxSizeMB)
	}

	if config.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive: %d", config.Retrieval.TopK)
	}

	if config.Agent.MaxHistory < 0 || config.Agent.HistoryInPrompt < 0 {
		return fmt.Errorf("agent history sizes must not be negative")
	}

	return nil
}

// SaveConfig saves configuration to the default config file as JSON
func SaveConfig(config *Config) error {
	configPath := getConfigPath(nil)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath(overrides map[string]interface{}) string {
	if str, ok := overrides["config"].(string); ok && str != "" {
		return ExpandPath(str)
	}

	if configPath := os.Getenv(envPrefix + "CONFIG"); configPath != "" {
		return ExpandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.json")
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Schemas.Directory = ExpandPath(c.Schemas.Directory)
	c.Index.Path = ExpandPath(c.Index.Path)
	c.Logging.File = ExpandPath(c.Logging.File)
	c.Embedding.CacheDir = ExpandPath(c.Embedding.CacheDir)
	c.Metrics.TextfilePath = ExpandPath(c.Metrics.TextfilePath)
}

// QueryTimeout returns the parsed index query timeout
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Index.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName)
	}

	return filepath.Join(homeDir, ".config", appName)
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{}

	if c.Index.Backend != "memory" {
		dirs = append(dirs, filepath.Dir(c.Index.Path))
	}

	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
