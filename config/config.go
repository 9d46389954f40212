package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	EnvMailDir  = "APPLE_MAIL_DIR"
	EnvMailBase = "APPLE_MAIL_BASE"
)

var ErrFilterConflict = errors.New("include and exclude flags are mutually exclusive")

// Config captures every option of an export run. Precedence is flag, then
// environment, then config file, then defaults.
type Config struct {
	ConfigFile string `toml:"-"`

	MailBase string `toml:"mail_base"`
	MailDir  string `toml:"mail_dir"`

	OutputDir   string `toml:"output" validate:"required"`
	Limit       int    `toml:"limit" validate:"min=0"`
	Workers     int    `toml:"workers" validate:"min=1,max=64"`
	HTMLMode    string `toml:"html" validate:"oneof=raw sanitize text"`
	Manifest    bool   `toml:"manifest"`
	MboxArchive string `toml:"mbox_archive"`
	MetricsFile string `toml:"metrics_file"`
	Progress    bool   `toml:"progress"`

	ListOnly    bool `toml:"-"`
	Interactive bool `toml:"-"`

	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogDir   string `toml:"log_dir"`

	IncludeSubject []string `toml:"include_subject"`
	IncludeSender  []string `toml:"include_sender"`
	ExcludeSubject []string `toml:"exclude_subject"`
	ExcludeSender  []string `toml:"exclude_sender"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		OutputDir: "output",
		Workers:   1,
		HTMLMode:  "raw",
		Manifest:  true,
		Progress:  true,
		LogLevel:  "info",
	}
}

// RegisterPersistentFlags attaches the flags shared by every command.
func RegisterPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a TOML config file (default ~/.config/apple-mail-exporter/config.toml)")
	flags.String("mail-dir", "", "Mail version directory, e.g. ~/Library/Mail/V10 (falls back to "+EnvMailDir+")")
	flags.String("mail-base", "", "Mail base directory (falls back to "+EnvMailBase+", default ~/Library/Mail)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")
}

// RegisterExportFlags attaches the flags of the export command.
func RegisterExportFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("output", "o", "output", "Output directory for Markdown files")
	flags.IntP("limit", "l", 0, "Maximum number of emails to export (0 = no limit)")
	flags.Int("workers", 1, "Number of concurrent export workers")
	flags.String("html", "raw", "HTML body handling: raw, sanitize, text")
	flags.Bool("manifest", true, "Append one line per document to manifest.jsonl in the output directory")
	flags.String("mbox-archive", "", "Also write every located message into this mbox file")
	flags.String("metrics-file", "", "Write run counters to this Prometheus textfile")
	flags.Bool("progress", true, "Show a progress bar at log level info")
	flags.Bool("list-only", false, "List matching emails without exporting")
	flags.BoolP("interactive", "i", false, "Start the interactive prompt")
	RegisterFilterFlags(cmd)
}

// RegisterFilterFlags attaches the regex filter flags.
func RegisterFilterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArray("include-subject", nil, "Regex allow-list applied to subjects (mutually exclusive with exclude flags)")
	flags.StringArray("include-sender", nil, "Regex allow-list applied to \"name <address>\" (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-subject", nil, "Regex block-list applied to subjects (mutually exclusive with include flags)")
	flags.StringArray("exclude-sender", nil, "Regex block-list applied to \"name <address>\" (mutually exclusive with include flags)")
}

// LoadConfig merges defaults, the config file, the environment and the parsed
// Cobra flags into a validated Config.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	cfg := Default()

	path, explicit, err := configPath(flags)
	if err != nil {
		return Config{}, err
	}
	if err := LoadFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg, os.Getenv)

	if err := applyFlags(flags, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvMailDir)); v != "" {
		cfg.MailDir = v
	}
	if v := strings.TrimSpace(getenv(EnvMailBase)); v != "" {
		cfg.MailBase = v
	}
}

func applyFlags(flags *pflag.FlagSet, cfg *Config) error {
	return errors.Join(
		stringFlag(flags, "mail-dir", &cfg.MailDir),
		stringFlag(flags, "mail-base", &cfg.MailBase),
		stringFlag(flags, "log-level", &cfg.LogLevel),
		stringFlag(flags, "log-dir", &cfg.LogDir),
		stringFlag(flags, "output", &cfg.OutputDir),
		intFlag(flags, "limit", &cfg.Limit),
		intFlag(flags, "workers", &cfg.Workers),
		stringFlag(flags, "html", &cfg.HTMLMode),
		boolFlag(flags, "manifest", &cfg.Manifest),
		stringFlag(flags, "mbox-archive", &cfg.MboxArchive),
		stringFlag(flags, "metrics-file", &cfg.MetricsFile),
		boolFlag(flags, "progress", &cfg.Progress),
		boolFlag(flags, "list-only", &cfg.ListOnly),
		boolFlag(flags, "interactive", &cfg.Interactive),
		arrayFlag(flags, "include-subject", &cfg.IncludeSubject),
		arrayFlag(flags, "include-sender", &cfg.IncludeSender),
		arrayFlag(flags, "exclude-subject", &cfg.ExcludeSubject),
		arrayFlag(flags, "exclude-sender", &cfg.ExcludeSender),
	)
}

func (c *Config) normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.HTMLMode = strings.ToLower(strings.TrimSpace(c.HTMLMode))

	for _, p := range []*string{&c.MailBase, &c.MailDir, &c.OutputDir, &c.MboxArchive, &c.MetricsFile, &c.LogDir} {
		expanded, err := ExpandHome(strings.TrimSpace(*p))
		if err != nil {
			return err
		}
		if expanded != "" {
			expanded = filepath.Clean(expanded)
		}
		*p = expanded
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the filter mode rule.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Errorf("invalid %s %v: must satisfy %s", fieldName(fe.Field()), fe.Value(), constraint(fe)))
		}
		return errors.Join(msgs...)
	}

	includeActive := len(cfg.IncludeSubject) > 0 || len(cfg.IncludeSender) > 0
	excludeActive := len(cfg.ExcludeSubject) > 0 || len(cfg.ExcludeSender) > 0
	if includeActive && excludeActive {
		return ErrFilterConflict
	}
	return nil
}

var flagNames = map[string]string{
	"OutputDir": "--output",
	"Limit":     "--limit",
	"Workers":   "--workers",
	"HTMLMode":  "--html",
	"LogLevel":  "--log-level",
}

func fieldName(field string) string {
	if name, ok := flagNames[field]; ok {
		return name
	}
	return field
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func stringFlag(flags *pflag.FlagSet, name string, dst *string) error {
	if !changed(flags, name) {
		return nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func intFlag(flags *pflag.FlagSet, name string, dst *int) error {
	if !changed(flags, name) {
		return nil
	}
	v, err := flags.GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func boolFlag(flags *pflag.FlagSet, name string, dst *bool) error {
	if !changed(flags, name) {
		return nil
	}
	v, err := flags.GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func arrayFlag(flags *pflag.FlagSet, name string, dst *[]string) error {
	if !changed(flags, name) {
		return nil
	}
	v, err := flags.GetStringArray(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
