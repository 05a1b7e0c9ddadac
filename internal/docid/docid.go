// Package docid derives deterministic document IDs for web pages from their URLs.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const prefix = "web:"

// CanonicalURL normalizes rawURL for identity comparison: lowercase scheme and host,
// no fragment, no trailing slash on the path. Unparseable input is returned trimmed.
func CanonicalURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// URLDocID returns a stable document ID for rawURL. URLs that differ only in
// case of the host, fragment or trailing slash share an ID.
func URLDocID(rawURL string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return prefix + hex.EncodeToString(hash[:12])
}
