package engine

import (
	"net"
	"net/url"
	"strings"
	"unshorten/pkg/serrors"
)

// CacheKey returns the cache key for a raw URL together with its parsed form.
//
// The key is a lightly normalized representation so that trivially different
// spellings of the same URL share one cache entry and one traversal:
//   - Lower-case the scheme and host
//   - Ensure path is present; empty path becomes "/"
//   - Drop default ports (http:80, https:443), keep non-default ports
//   - Remove the fragment
//
// Path and query are kept byte-for-byte: many shorteners use case-sensitive
// slugs, so anything beyond the authority must not be rewritten.
//
// Inputs that are not absolute http(s) URLs with a host fail with a
// malformed-url error.
func CacheKey(raw string) (string, *url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, serrors.Wrap(serrors.ErrMalformedURL, err, "could not parse URL")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, serrors.With(serrors.ErrMalformedURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", nil, serrors.With(serrors.ErrMalformedURL, "URL has no host")
	}

	if u.Path == "" {
		u.Path = "/"
	}

	// lowercase host and drop default ports
	host := strings.ToLower(u.Host)
	port := ""
	if ph, pp, err := net.SplitHostPort(host); err == nil {
		host, port = ph, pp
	} // else: might be a host without explicit port or IPv6 without port
	if port != "" {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		} else {
			u.Host = net.JoinHostPort(host, port)
		}
	} else {
		u.Host = host
	}

	u.Fragment = ""

	return u.String(), u, nil
}
