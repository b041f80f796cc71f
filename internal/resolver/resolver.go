// Package resolver implements the redirect follower: the probe-and-follow
// loop that expands a single URL to its terminal destination, one observed
// hop at a time.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"unshorten/internal/config"
	"unshorten/pkg/domain"
	"unshorten/pkg/logger"
	"unshorten/pkg/prober"
	"unshorten/pkg/serrors"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds redirect chains when no explicit limit is
// configured. It guards against pathological chains and bounds worst-case
// latency per URL.
const DefaultMaxDepth = 10

// redirectStatuses are the HTTP statuses treated as redirects when a usable
// Location header is present.
var redirectStatuses = map[int]struct{}{ //nolint: gochecknoglobals
	http.StatusMovedPermanently:  {},
	http.StatusFound:             {},
	http.StatusSeeOther:          {},
	http.StatusTemporaryRedirect: {},
	http.StatusPermanentRedirect: {},
}

// Options configure how chains are followed.
type Options struct {
	// MaxDepth is the default redirect depth limit per chain. Zero means
	// DefaultMaxDepth.
	MaxDepth int
	// HeadUnsupportedStatuses are the statuses that trigger a transparent GET
	// retry of the same hop. Which statuses mean "HEAD unsupported" varies by
	// server, so the set is configurable. Nil means 405 and 501.
	HeadUnsupportedStatuses []int
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxDepth:                cfg.Resolver.MaxDepth,
		HeadUnsupportedStatuses: cfg.Resolver.HeadUnsupportedStatuses,
	}
}

// Follower expands URLs by probing each hop with HEAD (falling back to GET)
// and following Location headers until a terminal response. It is stateless
// per call and safe for concurrent use.
type Follower struct {
	client          prober.Client
	maxDepth        int
	headUnsupported map[int]struct{}
}

// Follow expands rawURL by following its redirect chain and returns a
// terminal result. maxDepth overrides the configured depth limit when
// positive. The context deadline spans the whole chain, not a single hop.
func (f *Follower) Follow(ctx context.Context, rawURL string, maxDepth int) domain.Result {
	if maxDepth <= 0 {
		maxDepth = f.maxDepth
	}

	current, err := url.Parse(rawURL)
	if err != nil || !current.IsAbs() || current.Host == "" {
		return domain.Failed(domain.FailureMalformedURL, "")
	}

	// visited tracks exact URL spellings; a chain redirecting back to a
	// differently spelled equivalent of an earlier hop takes one extra hop
	// before the loop is caught
	visited := map[string]struct{}{current.String(): {}}
	lastProbed := ""

	for hops := 0; ; {
		resp, err := f.probe(ctx, current.String())
		if err != nil {
			return domain.Failed(classify(err), lastProbed)
		}
		lastProbed = current.String()

		if _, redirect := redirectStatuses[resp.StatusCode]; !redirect {
			// any non-redirect status is a valid final destination, including
			// 4xx and 5xx; only network and structural problems are failures
			return domain.Resolved(current.String(), hops, resp.StatusCode)
		}

		next, ok := resolveLocation(current, resp.Location)
		if !ok {
			// redirect status without a usable Location is terminal
			return domain.Resolved(current.String(), hops, resp.StatusCode)
		}
		if hops+1 > maxDepth {
			return domain.Failed(domain.FailureMaxDepthExceeded, current.String())
		}
		if _, seen := visited[next.String()]; seen {
			return domain.Failed(domain.FailureRedirectLoop, current.String())
		}
		visited[next.String()] = struct{}{}

		hops++
		logger.Debug(ctx, "following redirect",
			zap.String("from", current.String()),
			zap.String("to", next.String()),
			zap.Int("hop", hops))
		current = next
	}
}

// probe issues a HEAD request and retries the same URL with GET when the
// server signals HEAD is unsupported. The method retry is invisible to the
// caller: it does not count as a hop.
func (f *Follower) probe(ctx context.Context, url string) (prober.Response, error) {
	resp, err := f.client.Probe(ctx, http.MethodHead, url)
	if err != nil {
		return resp, err
	}

	if _, retry := f.headUnsupported[resp.StatusCode]; retry {
		return f.client.Probe(ctx, http.MethodGet, url)
	}

	return resp, nil
}

// resolveLocation resolves a Location header value against the current URL,
// handling relative references. It rejects empty, unparsable, and
// non-http(s) targets.
func resolveLocation(current *url.URL, location string) (*url.URL, bool) {
	if location == "" {
		return nil, false
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, false
	}

	next := current.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" || next.Host == "" {
		return nil, false
	}

	return next, true
}

// classify maps a probe error onto the failure taxonomy.
func classify(err error) domain.FailureKind {
	switch {
	case errors.Is(err, serrors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTimeout
	case errors.Is(err, serrors.ErrMalformedURL):
		return domain.FailureMalformedURL
	default:
		return domain.FailureNetwork
	}
}

// New creates a Follower that probes hops with the provided client.
func New(client prober.Client, opts Options) *Follower {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	statuses := opts.HeadUnsupportedStatuses
	if statuses == nil {
		statuses = []int{http.StatusMethodNotAllowed, http.StatusNotImplemented}
	}
	headUnsupported := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		headUnsupported[s] = struct{}{}
	}

	return &Follower{
		client:          client,
		maxDepth:        maxDepth,
		headUnsupported: headUnsupported,
	}
}
