// Package policy implements the inclusion gate that decides whether a URL is
// a candidate for expansion before any network work is scheduled.
package policy

import (
	"net/url"
	"strings"
	"unshorten/internal/config"
	"unshorten/pkg/domain"
)

// Options configure the inclusion criteria. Zero values allow everything.
type Options struct {
	// AllowedDomains restricts expansion to URLs whose host matches one of
	// these domains, exactly or as a subdomain. Empty means all domains are
	// allowed unless denied.
	AllowedDomains []string
	// DeniedDomains excludes matching hosts even when the allowlist is empty.
	DeniedDomains []string
	// MinURLLength skips URLs shorter than this many bytes. Short URLs are
	// assumed not to need expansion.
	MinURLLength int
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		AllowedDomains: cfg.Policy.AllowedDomains,
		DeniedDomains:  cfg.Policy.DeniedDomains,
		MinURLLength:   cfg.Policy.MinURLLength,
	}
}

// Decision is the outcome of evaluating one URL against the policy.
type Decision struct {
	// Include reports whether the URL should be resolved.
	Include bool
	// Reason explains the exclusion when Include is false.
	Reason domain.SkipReason
}

// Policy is a pure decision function over its configuration. It holds no
// mutable state and is safe for concurrent use.
type Policy struct {
	allowed []string
	denied  []string
	minLen  int
}

// Decide evaluates the parsed URL against the configured criteria. raw is the
// original input string; its length is what the minimum-length threshold
// applies to. Malformed input is handled before the policy runs and is a
// failure, never a skip.
func (p *Policy) Decide(u *url.URL, raw string) Decision {
	host := strings.ToLower(u.Hostname())

	if matchesAny(host, p.denied) {
		return Decision{Reason: domain.SkipDomainNotAllowed}
	}
	if len(p.allowed) > 0 && !matchesAny(host, p.allowed) {
		return Decision{Reason: domain.SkipDomainNotAllowed}
	}
	if len(raw) < p.minLen {
		return Decision{Reason: domain.SkipURLTooShort}
	}

	return Decision{Include: true}
}

// matchesAny reports whether host equals one of the domains or is a subdomain
// of one.
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

// New creates a Policy from the provided options. Configured domains are
// normalized to lower case once so Decide stays allocation-free.
func New(opts Options) *Policy {
	return &Policy{
		allowed: lowerAll(opts.AllowedDomains),
		denied:  lowerAll(opts.DeniedDomains),
		minLen:  opts.MinURLLength,
	}
}

func lowerAll(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(strings.ToLower(d))
		if d != "" {
			out = append(out, d)
		}
	}

	return out
}
