package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME and
	// XDG_DATA_HOME.
	GlobalConfigDir = "wordvec"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables that override the config file.
const (
	EnvEmbeddings = "WORDVEC_EMBEDDINGS"
	EnvDataDir    = "WORDVEC_DATA_DIR"
	EnvAddr       = "WORDVEC_ADDR"
	EnvTopN       = "WORDVEC_TOP_N"
)

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/wordvec/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// DefaultDataDir returns the data directory used when none is configured.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/wordvec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return GlobalConfigDir
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, GlobalConfigDir)
}

// ApplyEnv overrides config values from WORDVEC_* environment variables.
// Callers load a .env file first if they want one.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEmbeddings); v != "" {
		c.EmbeddingsPath = ExpandPath(v)
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = ExpandPath(v)
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvTopN); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultTopN = n
		}
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
