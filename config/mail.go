package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var (
	ErrNoMailDirectory = errors.New("apple mail directory not found")
	ErrNoVersionDir    = errors.New("no mail version directory (V*) found")
)

// IndexRelPath locates the Envelope Index inside a version directory.
var IndexRelPath = filepath.Join("MailData", "Envelope Index")

var versionDirPattern = regexp.MustCompile(`^V(\d+)$`)

// MailPaths are the resolved locations of the local mail store.
type MailPaths struct {
	Base  string
	Dir   string
	Index string
}

// DefaultMailBase returns ~/Library/Mail.
func DefaultMailBase() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Mail"), nil
}

// MailPaths resolves the base, the version directory and the index path. An
// explicit MailDir is used as is; otherwise the highest V<n> directory below
// the base is picked.
func (c Config) MailPaths() (MailPaths, error) {
	base := c.MailBase
	if base == "" {
		var err error
		if base, err = DefaultMailBase(); err != nil {
			return MailPaths{}, err
		}
	}

	dir := c.MailDir
	if dir == "" {
		var err error
		if dir, err = FindMailVersionDir(base); err != nil {
			return MailPaths{}, err
		}
	}

	return MailPaths{
		Base:  base,
		Dir:   dir,
		Index: filepath.Join(dir, IndexRelPath),
	}, nil
}

// FindMailVersionDir returns the V<n> directory with the highest n below base.
func FindMailVersionDir(base string) (string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoMailDirectory, base)
		}
		return "", fmt.Errorf("read %s: %w", base, err)
	}

	best, bestN := "", -1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > bestN {
			best, bestN = e.Name(), n
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoVersionDir, base)
	}
	return filepath.Join(base, best), nil
}
