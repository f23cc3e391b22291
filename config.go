package kvlite

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config describes a database and the stores an embedding application
// wants opened over it.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Stores   []StoreConfig  `yaml:"stores"`
}

// DatabaseConfig contains backing-file settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig declares one named store.
type StoreConfig struct {
	Name       string   `yaml:"name"`
	DefaultTTL Duration `yaml:"default_ttl"` // Applied when Set is called without options; 0 = never expire
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./kvlite.sqlite"
	}

	for _, sc := range cfg.Stores {
		if sc.Name == "" {
			return nil, fmt.Errorf("store entries must have a name")
		}
	}

	return &cfg, nil
}

// OpenConfig opens the configured database and a registry with every
// declared store created, default TTLs applied.
func OpenConfig(cfg *Config) (*DB, *Registry, error) {
	db, err := OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	registry := NewRegistry(db)
	for _, sc := range cfg.Stores {
		s, err := registry.Store(sc.Name)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		s.defaultTTL = sc.DefaultTTL.Duration()
	}

	return db, registry, nil
}

// SetupLogging sets the global zerolog level from a config string.
func SetupLogging(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
