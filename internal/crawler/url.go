package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL standardizes a URL for ledger lookups when canonicalization is
// enabled. It lowercases the scheme and host, removes default ports, trims
// trailing slashes from non-root paths, sorts query parameters and drops the
// fragment.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = ""
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// canonicalKey is the ledger key function used when canonicalization is on.
// Unparseable URLs fall back to their raw form.
func canonicalKey(rawURL string) string {
	key, err := CanonicalURL(rawURL)
	if err != nil {
		return rawURL
	}
	return key
}

// ValidateStartURL checks that a crawl start URL is an absolute http(s) URL.
func ValidateStartURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: parse url: %v", ErrInvalidRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRequest, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidRequest)
	}
	return nil
}

// sameHost reports whether candidate shares base's host (case-insensitive).
func sameHost(base, candidate string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Hostname(), c.Hostname())
}
