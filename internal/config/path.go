package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath replaces a leading ~ with the home directory and expands $VAR references.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// ResolvePath reads a path setting from v and expands it. Relative paths that come
// from a config file are taken relative to that file's directory, so a config kept
// next to its database and rule table can refer to them by name.
func ResolvePath(v *viper.Viper, key string) string {
	path := ExpandPath(v.GetString(key))
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if used := v.ConfigFileUsed(); used != "" && v.InConfig(key) {
		return filepath.Join(filepath.Dir(used), path)
	}
	return path
}

// DefaultTokenFile returns ~/.config/quest/sheets-token.json.
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sheets-token.json"
	}
	return filepath.Join(home, ".config", "quest", "sheets-token.json")
}
