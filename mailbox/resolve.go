// Package mailbox maps Envelope Index mailbox references onto the on-disk
// mailbox tree and finds message containers inside it.
//
// Apple Mail stores every level of a folder hierarchy as its own ".mbox"
// directory, so imap://UUID/[Gmail]/All%20Mail lives at
// <mail dir>/UUID/[Gmail].mbox/All Mail.mbox.
package mailbox

import (
	"net/url"
	"path/filepath"
	"strings"
)

// DirSuffix is appended to every folder level.
const DirSuffix = ".mbox"

// Schemes holds the URL schemes Apple Mail uses for mailbox references.
var Schemes = []string{"imap", "local"}

// Resolve converts a mailbox URL into a directory below baseDir. It does not
// touch the filesystem. Unknown schemes, malformed references and empty URLs
// report false.
func Resolve(rawURL, baseDir string) (string, bool) {
	account, path, ok := splitReference(rawURL)
	if !ok {
		return "", false
	}

	elems := []string{baseDir, account}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		elems = append(elems, unescape(seg)+DirSuffix)
	}
	if len(elems) == 2 {
		return "", false
	}

	return filepath.Join(elems...), true
}

// splitReference separates "scheme://account/path" into account and the still
// escaped path.
func splitReference(rawURL string) (account, path string, ok bool) {
	rest, ok := trimScheme(rawURL)
	if !ok {
		return "", "", false
	}

	account, path, found := strings.Cut(rest, "/")
	if !found || account == "" || path == "" {
		return "", "", false
	}
	if account == "." || account == ".." {
		return "", "", false
	}
	return account, path, true
}

func trimScheme(rawURL string) (string, bool) {
	for _, scheme := range Schemes {
		if rest, ok := strings.CutPrefix(rawURL, scheme+"://"); ok {
			return rest, true
		}
	}
	return "", false
}

// unescape percent-decodes a single segment. PathUnescape leaves '+' alone.
// A decoded slash is stored as ':' the way the macOS file layer does.
func unescape(seg string) string {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return seg
	}
	return strings.ReplaceAll(decoded, "/", ":")
}
