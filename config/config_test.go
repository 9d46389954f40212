package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	RegisterPersistentFlags(cmd)
	RegisterExportFlags(cmd)
	return cmd
}

// isolate points HOME at an empty directory and clears the mail env vars.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvMailDir, "")
	t.Setenv(EnvMailBase, "")
	return home
}

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cmd := newCommand()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%q) error = %v", args, err)
	}
	return LoadConfig(cmd)
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutputDir != "output" || cfg.Workers != 1 || cfg.HTMLMode != "raw" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Manifest || !cfg.Progress {
		t.Errorf("manifest and progress should default to on: %+v", cfg)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty without a file", cfg.ConfigFile)
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	isolate(t)

	cfg, err := load(t,
		"--output", "out/x", "--limit", "5", "--workers", "4", "--html", "Sanitize",
		"--manifest=false", "--log-level", "WARNING", "--include-subject", "^Re:",
		"--include-sender", "alice", "--list-only",
	)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutputDir != filepath.Clean("out/x") || cfg.Limit != 5 || cfg.Workers != 4 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.HTMLMode != "sanitize" {
		t.Errorf("HTMLMode = %q, want sanitize", cfg.HTMLMode)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Manifest || !cfg.ListOnly {
		t.Errorf("bool flags not applied: %+v", cfg)
	}
	if len(cfg.IncludeSubject) != 1 || cfg.IncludeSubject[0] != "^Re:" || len(cfg.IncludeSender) != 1 {
		t.Errorf("filters not applied: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
		is      error
	}{
		{name: "negative limit", args: []string{"--limit", "-1"}, wantErr: "--limit"},
		{name: "zero workers", args: []string{"--workers", "0"}, wantErr: "--workers"},
		{name: "too many workers", args: []string{"--workers", "65"}, wantErr: "--workers"},
		{name: "html mode", args: []string{"--html", "markdown"}, wantErr: "--html"},
		{name: "log level", args: []string{"--log-level", "trace"}, wantErr: "--log-level"},
		{name: "empty output", args: []string{"--output", ""}, wantErr: "--output"},
		{name: "mixed filters", args: []string{"--include-subject", "a", "--exclude-sender", "b"}, is: ErrFilterConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	home := isolate(t)

	file := filepath.Join(home, ".config", "apple-mail-exporter", "config.toml")
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "mail_dir = \"/from/file\"\nmail_base = \"/base/file\"\nworkers = 3\nhtml = \"text\"\nexclude_subject = [\"spam\"]\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ConfigFile != file || cfg.MailDir != "/from/file" || cfg.Workers != 3 || cfg.HTMLMode != "text" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.ExcludeSubject) != 1 || cfg.ExcludeSubject[0] != "spam" {
		t.Errorf("ExcludeSubject = %q", cfg.ExcludeSubject)
	}

	t.Setenv(EnvMailDir, "/from/env")
	cfg, err = load(t)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MailDir != "/from/env" || cfg.MailBase != "/base/file" {
		t.Errorf("env should override file: %+v", cfg)
	}

	cfg, err = load(t, "--mail-dir", "/from/flag", "--workers", "2")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MailDir != "/from/flag" || cfg.Workers != 2 {
		t.Errorf("flags should override env and file: %+v", cfg)
	}
}

func TestLoadConfig_ConfigFlag(t *testing.T) {
	home := isolate(t)

	if _, err := load(t, "--config", filepath.Join(home, "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}

	bad := filepath.Join(home, "bad.toml")
	if err := os.WriteFile(bad, []byte("no_such_key = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := load(t, "--config", bad); err == nil || !strings.Contains(err.Error(), "no_such_key") {
		t.Errorf("error = %v, want unknown key", err)
	}

	good := filepath.Join(home, "good.toml")
	if err := os.WriteFile(good, []byte("output = \"~/exports\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(t, "--config", good)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutputDir != filepath.Join(home, "exports") {
		t.Errorf("OutputDir = %q, want home expanded", cfg.OutputDir)
	}
}

func TestFindMailVersionDir(t *testing.T) {
	tests := []struct {
		name    string
		dirs    []string
		files   []string
		want    string
		wantErr error
	}{
		{name: "highest wins numerically", dirs: []string{"V2", "V10", "V9"}, want: "V10"},
		{name: "ignores non version entries", dirs: []string{"V8", "Vx", "MailData", "V-1", "v11"}, files: []string{"V12"}, want: "V8"},
		{name: "none", dirs: []string{"Bundles"}, wantErr: ErrNoVersionDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			for _, d := range tt.dirs {
				if err := os.Mkdir(filepath.Join(base, d), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(base, f), nil, 0o644); err != nil {
					t.Fatal(err)
				}
			}

			got, err := FindMailVersionDir(base)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindMailVersionDir() error = %v", err)
			}
			if got != filepath.Join(base, tt.want) {
				t.Errorf("FindMailVersionDir() = %q, want %q", got, filepath.Join(base, tt.want))
			}
		})
	}
}

func TestFindMailVersionDir_MissingBase(t *testing.T) {
	_, err := FindMailVersionDir(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrNoMailDirectory) {
		t.Fatalf("error = %v, want %v", err, ErrNoMailDirectory)
	}
}

func TestMailPaths(t *testing.T) {
	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "V10"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := Config{MailBase: base}.MailPaths()
	if err != nil {
		t.Fatalf("MailPaths() error = %v", err)
	}
	if paths.Dir != filepath.Join(base, "V10") {
		t.Errorf("Dir = %q", paths.Dir)
	}
	if paths.Index != filepath.Join(base, "V10", "MailData", "Envelope Index") {
		t.Errorf("Index = %q", paths.Index)
	}

	paths, err = Config{MailBase: base, MailDir: "/explicit/V3"}.MailPaths()
	if err != nil {
		t.Fatalf("MailPaths() error = %v", err)
	}
	if paths.Dir != "/explicit/V3" || paths.Index != filepath.Join("/explicit/V3", "MailData", "Envelope Index") {
		t.Errorf("explicit dir not used: %+v", paths)
	}
}
