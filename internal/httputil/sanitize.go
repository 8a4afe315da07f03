package httputil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateURL checks that a URL is well-formed, uses HTTP(S) and has a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("only HTTP(S) URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ResolveLocation resolves a redirect Location header against the URL
// that produced it.
func ResolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("malformed base URL: %w", err)
	}
	l, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", fmt.Errorf("malformed location: %w", err)
	}
	resolved := b.ResolveReference(l).String()
	if err := ValidateURL(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// unsafeNameChars are replaced in downloaded filenames. Separators go
// first so filepath.Base cannot discard part of a name like "a/b.zip".
var unsafeNameChars = strings.NewReplacer(
	"..", "_", "/", "_", "\\", "_",
	":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename reduces a decoded filename to a single safe path
// element. Control characters are dropped.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = filepath.Base(unsafeNameChars.Replace(name))

	switch name {
	case "", ".", "..", "_":
		return "untitled"
	}
	return name
}

// SafeDownloadPath joins dir and the sanitized filename, failing if the
// result would land outside dir.
func SafeDownloadPath(dir, filename string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	target := filepath.Join(absDir, SanitizeFilename(filename))
	rel, err := filepath.Rel(absDir, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", target, absDir)
	}

	return target, nil
}
