// Package urls validates and canonicalizes media URLs.
package urls

import (
	"net/url"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// IsURLValid reports whether raw is an absolute http(s) URL with a host.
func IsURLValid(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))

	return err == nil && u.Host != "" && (u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS)
}

// Normalize returns the canonical form of raw: surrounding spaces trimmed,
// scheme and host lowercased, default port and fragment dropped. Query and
// path are kept as given since they identify the media. Unparsable input is
// returned trimmed.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch port := u.Port(); {
	case u.Scheme == schemeHTTP && port == "80", u.Scheme == schemeHTTPS && port == "443":
		u.Host = u.Hostname()
	}

	return u.String()
}
