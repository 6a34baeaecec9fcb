// Package config loads quest settings from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by viper.
const EnvPrefix = "QUEST"

// Config is the typed view of the quest configuration.
type Config struct {
	Scoring      ScoringConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	Achievements AchievementsConfig
	Server       ServerConfig
	Import       ImportConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// ScoringConfig overrides the reward table and level step.
type ScoringConfig struct {
	Rewards   map[string]int
	LevelStep int
}

// AchievementsConfig points at an optional YAML rule table.
type AchievementsConfig struct {
	File string
}

// ImportConfig limits bulk imports.
type ImportConfig struct {
	MaxRows int
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string
}

// DefaultDatabasePath returns ~/.local/share/quest/quest.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "quest.db"
	}
	return filepath.Join(home, ".local", "share", "quest", "quest.db")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("scoring.level_step", scoring.DefaultConfig().LevelStep)
	v.SetDefault("import.max_rows", importer.DefaultMaxRows)
	v.SetDefault("server.addr", "127.0.0.1:8080")
}

// Load reads the typed configuration from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Database:     DatabaseConfig{Path: ResolvePath(v, "database.path")},
		Logging:      LoggingConfig{Level: v.GetString("logging.level"), Format: v.GetString("logging.format")},
		Achievements: AchievementsConfig{File: ResolvePath(v, "achievements.file")},
		Import:       ImportConfig{MaxRows: v.GetInt("import.max_rows")},
		Server:       ServerConfig{Addr: v.GetString("server.addr")},
		Scoring: ScoringConfig{
			LevelStep: v.GetInt("scoring.level_step"),
			Rewards:   map[string]int{},
		},
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath()
	}
	for key, xp := range v.GetStringMap("scoring.rewards") {
		n, err := toInt(xp)
		if err != nil {
			return Config{}, fmt.Errorf("%w: scoring.rewards.%s: %v", common.ErrInvalidConfig, key, err)
		}
		cfg.Scoring.Rewards[strings.ToLower(key)] = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c Config) Validate() error {
	if c.Import.MaxRows < 0 {
		return fmt.Errorf("%w: import.max_rows cannot be negative", common.ErrInvalidConfig)
	}
	if _, err := c.ScoringOptions(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ScoringOptions converts the scoring section for scoring.NewWithConfig.
func (c Config) ScoringOptions() (scoring.Config, error) {
	config := scoring.DefaultConfig()
	if c.Scoring.LevelStep != 0 {
		config.LevelStep = c.Scoring.LevelStep
	}
	for key, xp := range c.Scoring.Rewards {
		config.Rewards[scoring.ActionKind(key)] = xp
	}
	// Run the engine's own checks so a bad table fails at load time.
	if _, err := scoring.NewWithConfig(config); err != nil {
		return scoring.Config{}, err
	}
	return config, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
