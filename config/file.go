package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// DefaultConfigPath returns ~/.config/apple-mail-exporter/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "apple-mail-exporter", "config.toml"), nil
}

// configPath returns the file to load and whether the user named it.
func configPath(flags *pflag.FlagSet) (string, bool, error) {
	if changed(flags, "config") {
		path, err := flags.GetString("config")
		if err != nil {
			return "", false, err
		}
		path, err = ExpandHome(path)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	path, err := DefaultConfigPath()
	if err != nil {
		// No home directory means no default file.
		return "", false, nil
	}
	return path, false, nil
}

// LoadFile decodes the TOML file at path on top of cfg. A missing file is an
// error only when required is set.
func LoadFile(path string, required bool, cfg *Config) error {
	if path == "" {
		return nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	cfg.ConfigFile = path
	return nil
}
