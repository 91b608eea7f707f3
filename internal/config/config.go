// Package config manages ure configuration and the .ure directory structure.
// It handles loading, saving, and initializing the project configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gitlab.com/tozd/go/errors"
)

const (
	UREDir       = ".ure"
	ConfigFile   = "config"
	DatabaseFile = "ure.db"
	EnvFile      = ".env"
)

// Environment variables that override the config file
const (
	EnvSourceDSN      = "URE_SOURCE_DSN"
	EnvWeaviateAPIKey = "URE_WEAVIATE_API_KEY"
	EnvLogLevel       = "URE_LOG_LEVEL"
)

var (
	// ErrNotInitialized is returned when no .ure directory can be found
	ErrNotInitialized = errors.Base("not a ure project (or any parent up to root)")
	// ErrAlreadyInitialized is returned by Initialize when .ure exists
	ErrAlreadyInitialized = errors.Base("ure project already exists")
	// ErrInvalid is returned for configuration that fails validation
	ErrInvalid = errors.Base("invalid configuration")
)

// SourceConfig selects and addresses the record source
type SourceConfig struct {
	Kind            string   `toml:"kind" validate:"required,oneof=sqlite mysql postgres weaviate"`
	DSN             string   `toml:"dsn,omitempty"`
	TablePrefix     string   `toml:"table_prefix,omitempty"`
	StructuredKeys  []string `toml:"structured_keys"`
	WeaviateURL     string   `toml:"weaviate_url,omitempty" validate:"required_if=Kind weaviate"`
	ContentProperty string   `toml:"content_property,omitempty"`
	TitleProperty   string   `toml:"title_property,omitempty"`
}

// SearchConfig holds scanning defaults
type SearchConfig struct {
	RecordTypes       []string `toml:"record_types" validate:"dive,required"`
	ContentBatchSize  int      `toml:"content_batch_size" validate:"min=1"`
	DatabaseBatchSize int      `toml:"database_batch_size" validate:"min=1"`
	MaxPreviewResults int      `toml:"max_preview_results" validate:"min=1"`
	SnippetContext    int      `toml:"snippet_context" validate:"min=0"`
	MaxRegexInput     int      `toml:"max_regex_input" validate:"min=0"`
	ExcludeFields     []string `toml:"exclude_fields"`
	SkipGUID          bool     `toml:"skip_guid"`
}

// HistoryConfig controls operation log retention
type HistoryConfig struct {
	// Limit is the number of log entries kept, 0 keeps everything
	Limit int `toml:"limit" validate:"min=0"`
}

// RetryConfig controls retries of source reads and writes
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts" validate:"min=1"`
	BaseDelayMS int `toml:"base_delay_ms" validate:"min=0"`
	MaxDelayMS  int `toml:"max_delay_ms" validate:"min=0"`
}

// Config represents the ure configuration
type Config struct {
	LogLevel string        `toml:"log_level" validate:"oneof=trace debug info warn error disabled"`
	Source   SourceConfig  `toml:"source"`
	Search   SearchConfig  `toml:"search"`
	History  HistoryConfig `toml:"history"`
	Retry    RetryConfig   `toml:"retry"`

	path    string            // path to .ure directory
	secrets map[string]string // environment overrides, never saved
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Source: SourceConfig{
			Kind:           "sqlite",
			TablePrefix:    "wp_",
			StructuredKeys: []string{"_elementor_data"},
		},
		Search: SearchConfig{
			RecordTypes:       []string{"post", "page"},
			ContentBatchSize:  100,
			DatabaseBatchSize: 5000,
			MaxPreviewResults: 20,
			SnippetContext:    50,
			SkipGUID:          true,
		},
		History: HistoryConfig{Limit: 5},
		Retry:   RetryConfig{MaxAttempts: 3, BaseDelayMS: 200, MaxDelayMS: 5000},
	}
}

// FindRoot finds the .ure directory by walking up from the current
// directory, falling back to ~/.ure
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.WithStack(err)
	}

	for {
		urePath := filepath.Join(dir, UREDir)
		if info, err := os.Stat(urePath); err == nil && info.IsDir() {
			return urePath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	home, err := homedir.Expand("~/" + UREDir)
	if err == nil {
		if info, err := os.Stat(home); err == nil && info.IsDir() {
			return home, nil
		}
	}
	return "", errors.WithStack(ErrNotInitialized)
}

// Load loads the configuration from the nearest .ure directory
func Load() (*Config, error) {
	urePath, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(urePath)
}

// LoadFrom loads the configuration stored in urePath. Secrets are read from
// the process environment first and from a .env file next to .ure second.
func LoadFrom(urePath string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(urePath, ConfigFile))
	if err != nil {
		return nil, errors.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Errorf("failed to parse config: %w", err)
	}
	cfg.path = urePath

	if err := cfg.loadSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadSecrets() error {
	fileEnv := map[string]string{}
	envPath := filepath.Join(filepath.Dir(c.path), EnvFile)
	if _, err := os.Stat(envPath); err == nil {
		if fileEnv, err = godotenv.Read(envPath); err != nil {
			return errors.Errorf("failed to read %s: %w", envPath, err)
		}
	}

	c.secrets = map[string]string{}
	for _, key := range []string{EnvSourceDSN, EnvWeaviateAPIKey, EnvLogLevel} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			c.secrets[key] = v
		} else if v := fileEnv[key]; v != "" {
			c.secrets[key] = v
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and required settings
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fe.Namespace()+" failed "+fe.Tag())
	}
	return errors.WithDetails(ErrInvalid, "problems", problems)
}

// DSN returns the source connection string, preferring the environment
func (c *Config) DSN() string {
	if v := c.secrets[EnvSourceDSN]; v != "" {
		return v
	}
	return c.Source.DSN
}

// Level returns the log level, preferring the environment
func (c *Config) Level() string {
	if v := c.secrets[EnvLogLevel]; v != "" {
		return strings.ToLower(v)
	}
	return c.LogLevel
}

// WeaviateAPIKey returns the API key from the environment, if any
func (c *Config) WeaviateAPIKey() string {
	return c.secrets[EnvWeaviateAPIKey]
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Errorf("failed to marshal config: %w", err)
	}
	return errors.WithStack(os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0o600))
}

// UREPath returns the path to the .ure directory
func (c *Config) UREPath() string {
	return c.path
}

// DatabasePath returns the path to the operation log database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// Initialize creates a new .ure directory inside dir
func Initialize(dir string, src SourceConfig) (*Config, error) {
	urePath := filepath.Join(dir, UREDir)

	if _, err := os.Stat(urePath); err == nil {
		return nil, errors.WithDetails(ErrAlreadyInitialized, "path", urePath)
	}

	cfg := Default()
	cfg.Source.Kind = src.Kind
	cfg.Source.DSN = src.DSN
	cfg.Source.WeaviateURL = src.WeaviateURL
	if src.TablePrefix != "" {
		cfg.Source.TablePrefix = src.TablePrefix
	}
	if src.StructuredKeys != nil {
		cfg.Source.StructuredKeys = src.StructuredKeys
	}
	cfg.Source.ContentProperty = src.ContentProperty
	cfg.Source.TitleProperty = src.TitleProperty
	cfg.path = urePath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(urePath, 0o755); err != nil {
		return nil, errors.Errorf("failed to create .ure directory: %w", err)
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(urePath)
		return nil, err
	}

	return cfg, nil
}
