package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model sources
const (
	SourceFile  = "file"
	SourceRedis = "redis"
)

// Config represents spamscan configuration
type Config struct {
	// Model artifacts and how serving loads them
	Model ModelConfig `yaml:"model"`

	// Batch training inputs
	Training TrainingConfig `yaml:"training"`

	// HTTP scan API
	Server ServerConfig `yaml:"server"`

	// Suspicious word highlighting
	Highlight HighlightConfig `yaml:"highlight"`

	// Milter server settings
	Milter MilterConfig `yaml:"milter"`

	// Redis model registry
	Redis RedisConfig `yaml:"redis"`

	// Feedback capture
	Feedback FeedbackConfig `yaml:"feedback"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig locates the model and word table documents
type ModelConfig struct {
	Path      string `yaml:"path"`
	WordsPath string `yaml:"words_path"`

	// Source selection: "file" or "redis"
	Source string `yaml:"source"`

	// Reload when the files change on disk
	Watch bool `yaml:"watch"`
}

// TrainingConfig contains batch training settings
type TrainingConfig struct {
	DataPath     string `yaml:"data_path"`
	FeedbackPath string `yaml:"feedback_path"`

	// Laplace smoothing constant
	Alpha float64 `yaml:"alpha"`

	// Number of words kept in the exported table, 0 = all
	WordsLimit int `yaml:"words_limit"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Address           string   `yaml:"address"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	ReadTimeoutMs     int      `yaml:"read_timeout_ms"`
	WriteTimeoutMs    int      `yaml:"write_timeout_ms"`
	ShutdownTimeoutMs int      `yaml:"shutdown_timeout_ms"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
}

// HighlightConfig controls how suspicious words are marked
type HighlightConfig struct {
	OpenTag  string `yaml:"open_tag"`
	CloseTag string `yaml:"close_tag"`

	// Only the top N positive-score words are highlighted, 0 = all
	MaxWords int `yaml:"max_words"`

	// Fallback list when no word table document is available
	SeedWords []string `yaml:"seed_words"`
}

// MilterConfig contains milter server settings
type MilterConfig struct {
	// Enable milter server
	Enabled bool `yaml:"enabled"`

	// Network and address for milter socket
	Network string `yaml:"network"` // "tcp" or "unix"
	Address string `yaml:"address"` // "127.0.0.1:7357" or "/tmp/spamscan.sock"

	// Connection settings
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	// Response modes, 0 disables the action
	RejectConfidence     float64 `yaml:"reject_confidence"`     // spam with confidence >= this is rejected
	QuarantineConfidence float64 `yaml:"quarantine_confidence"` // spam with confidence >= this is quarantined
	RejectMessage        string  `yaml:"reject_message"`
	QuarantineMessage    string  `yaml:"quarantine_message"`

	// Header modifications
	AddSpamHeaders   bool   `yaml:"add_spam_headers"`
	SpamHeaderPrefix string `yaml:"spam_header_prefix"`

	// Body bytes kept for scanning
	MaxBodyBytes int `yaml:"max_body_bytes"`

	GracefulShutdownTimeout int `yaml:"graceful_shutdown_timeout_ms"`
}

// RedisConfig contains model registry settings
type RedisConfig struct {
	URL         string `yaml:"url"`
	KeyPrefix   string `yaml:"key_prefix"`
	DatabaseNum int    `yaml:"database_num"`
	Channel     string `yaml:"channel"`
}

// FeedbackConfig contains feedback store settings
type FeedbackConfig struct {
	// SQLite database path, empty disables feedback capture
	DBPath string `yaml:"db_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	File   string `yaml:"file"`   // log file path, empty = stderr
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns spamscan default configuration
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:      "spam-model.json",
			WordsPath: "suspicious-words.json",
			Source:    SourceFile,
			Watch:     false,
		},
		Training: TrainingConfig{
			DataPath:     "spam.csv",
			FeedbackPath: "feedback.csv",
			Alpha:        1.0,
			WordsLimit:   0,
		},
		Server: ServerConfig{
			Address:           ":8000",
			AllowedOrigins:    []string{"*"},
			ReadTimeoutMs:     5000,
			WriteTimeoutMs:    10000,
			ShutdownTimeoutMs: 10000,
			MaxBodyBytes:      1 << 20,
		},
		Highlight: HighlightConfig{
			OpenTag:  "<mark>",
			CloseTag: "</mark>",
			MaxWords: 50,
			SeedWords: []string{
				"free", "win", "winner", "prize", "urgent", "offer", "click",
				"limited", "bonus", "gift", "deal", "lottery", "congratulations",
				"selected", "opportunity", "promotion",
			},
		},
		Milter: MilterConfig{
			Enabled:                 false,
			Network:                 "tcp",
			Address:                 "127.0.0.1:7357",
			ReadTimeoutMs:           10000,
			WriteTimeoutMs:          10000,
			RejectConfidence:        0,
			QuarantineConfidence:    0,
			RejectMessage:           "",
			QuarantineMessage:       "",
			AddSpamHeaders:          true,
			SpamHeaderPrefix:        "X-Spamscan-",
			MaxBodyBytes:            1 << 20,
			GracefulShutdownTimeout: 10000,
		},
		Redis: RedisConfig{
			URL:         "redis://localhost:6379",
			KeyPrefix:   "spamscan",
			DatabaseNum: 0,
			Channel:     "spamscan:model-updates",
		},
		Feedback: FeedbackConfig{
			DBPath: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// If no config file specified, return defaults
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Model.Source != SourceFile && c.Model.Source != SourceRedis {
		return errors.Errorf("model source must be '%s' or '%s'", SourceFile, SourceRedis)
	}
	if c.Model.Source == SourceFile && c.Model.Path == "" {
		return errors.New("model path cannot be empty")
	}

	if c.Training.Alpha <= 0 {
		return errors.New("training alpha must be > 0")
	}
	if c.Training.WordsLimit < 0 {
		return errors.New("training words_limit must be >= 0")
	}

	if c.Server.Address == "" {
		return errors.New("server address cannot be empty")
	}
	if c.Server.MaxBodyBytes < 1 {
		return errors.New("server max_body_bytes must be >= 1")
	}

	if c.Highlight.MaxWords < 0 {
		return errors.New("highlight max_words must be >= 0")
	}

	if !contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return errors.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if !contains([]string{"text", "json"}, c.Logging.Format) {
		return errors.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Model.Source == SourceRedis && c.Redis.URL == "" {
		return errors.New("redis url cannot be empty when model source is redis")
	}

	// Validate milter settings
	if c.Milter.Enabled {
		if c.Milter.Network != "tcp" && c.Milter.Network != "unix" {
			return errors.New("milter network must be 'tcp' or 'unix'")
		}

		if c.Milter.Address == "" {
			return errors.New("milter address cannot be empty when enabled")
		}

		if c.Milter.ReadTimeoutMs < 1000 {
			return errors.New("milter read_timeout_ms must be >= 1000")
		}

		if c.Milter.WriteTimeoutMs < 1000 {
			return errors.New("milter write_timeout_ms must be >= 1000")
		}
	}

	if c.Milter.RejectConfidence < 0 || c.Milter.RejectConfidence > 1 {
		return errors.New("milter reject_confidence must be between 0 and 1")
	}
	if c.Milter.QuarantineConfidence < 0 || c.Milter.QuarantineConfidence > 1 {
		return errors.New("milter quarantine_confidence must be between 0 and 1")
	}
	if c.Milter.RejectConfidence > 0 && c.Milter.QuarantineConfidence >= c.Milter.RejectConfidence {
		return errors.New("milter quarantine_confidence must be less than reject_confidence")
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
