package mailbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	ContainerExt = ".emlx"
	PartialExt   = ".partial.emlx"
)

var errFound = errors.New("container found")

// ContainerNames returns the complete and the partially downloaded file name
// for a message id.
func ContainerNames(id int64) (exact, partial string) {
	base := strconv.FormatInt(id, 10)
	return base + ContainerExt, base + PartialExt
}

// Locate walks dir looking for the container of message id. A complete
// "<id>.emlx" anywhere in the tree wins over "<id>.partial.emlx"; among equal
// candidates the first in lexical walk order is returned. A missing or
// unreadable dir reports false.
func Locate(id int64, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}

	exact, partial := ContainerNames(id)
	var found, fallback string

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch d.Name() {
		case exact:
			found = path
			return errFound
		case partial:
			if fallback == "" {
				fallback = path
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", false
	}

	if found != "" {
		return found, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}
