package domain

// Request is a single URL submitted for expansion.
// It is immutable once created; the engine produces exactly one Result per Request.
type Request struct {
	// URL is the original, possibly shortened, URL to expand.
	URL string `json:"url"`
	// MaxDepth optionally overrides the engine's default redirect depth limit
	// for this request. Zero means use the engine default.
	MaxDepth int `json:"maxDepth,omitempty"`
}

// Status represents the outcome category of a resolution.
// It can be resolved, skipped, or failed.
type Status string

const (
	// StatusResolved indicates the redirect chain reached a terminal (non-redirect) response.
	StatusResolved Status = "RESOLVED"
	// StatusSkipped indicates the URL was excluded by the inclusion policy before any network call.
	StatusSkipped Status = "SKIPPED"
	// StatusFailed indicates a network, structural, or input failure; see FailureKind.
	StatusFailed Status = "FAILED"
)

// SkipReason explains why the inclusion policy excluded a URL.
type SkipReason string

const (
	// SkipDomainNotAllowed indicates the URL host was denied, or absent from a non-empty allowlist.
	SkipDomainNotAllowed SkipReason = "DOMAIN_NOT_ALLOWED"
	// SkipURLTooShort indicates the URL is shorter than the configured minimum
	// length and does not look like it needs expansion.
	SkipURLTooShort SkipReason = "URL_TOO_SHORT"
)

// FailureKind classifies a failed resolution so downstream tooling can decide
// whether to retry, report, or drop the URL.
type FailureKind string

const (
	// FailureMalformedURL indicates the input could not be parsed as an absolute http(s) URL.
	FailureMalformedURL FailureKind = "MALFORMED_URL"
	// FailureRedirectLoop indicates the chain revisited a URL it had already probed.
	FailureRedirectLoop FailureKind = "REDIRECT_LOOP"
	// FailureMaxDepthExceeded indicates the chain exceeded the configured redirect depth limit.
	FailureMaxDepthExceeded FailureKind = "MAX_DEPTH_EXCEEDED"
	// FailureNetwork indicates a connection, DNS, or TLS failure at some hop.
	FailureNetwork FailureKind = "NETWORK"
	// FailureTimeout indicates the whole-chain timeout elapsed before a terminal response.
	FailureTimeout FailureKind = "TIMEOUT"
	// FailureCacheInconsistency indicates the cache reservation protocol was
	// violated, e.g. a waiter found no reservation for its key.
	FailureCacheInconsistency FailureKind = "CACHE_INCONSISTENCY"
)

// Result is the outcome of resolving a single Request. Exactly one of the
// field groups is meaningful depending on Status:
//   - StatusResolved: FinalURL, Hops, StatusCode
//   - StatusSkipped: SkipReason
//   - StatusFailed: FailureKind, and PartialURL when at least one hop succeeded
type Result struct {
	// Status is the outcome category.
	Status Status `json:"status"`

	// FinalURL is the terminal destination reached by following redirects.
	FinalURL string `json:"finalUrl,omitempty"`
	// Hops is the number of redirects followed to reach FinalURL. Zero means
	// the original URL itself was terminal.
	Hops int `json:"hops,omitempty"`
	// StatusCode is the HTTP status of the terminal response. A 404 at the end
	// of a chain is still a valid final destination.
	StatusCode int `json:"statusCode,omitempty"`

	// SkipReason is set when Status is SKIPPED.
	SkipReason SkipReason `json:"skipReason,omitempty"`

	// FailureKind is set when Status is FAILED.
	FailureKind FailureKind `json:"failureKind,omitempty"`
	// PartialURL is the last successfully probed URL before the failure, if any.
	PartialURL string `json:"partialUrl,omitempty"`
}

// Resolved builds a successful Result for a terminal response.
func Resolved(finalURL string, hops int, statusCode int) Result {
	return Result{
		Status:     StatusResolved,
		FinalURL:   finalURL,
		Hops:       hops,
		StatusCode: statusCode,
	}
}

// Skipped builds a Result for a URL excluded by the inclusion policy.
func Skipped(reason SkipReason) Result {
	return Result{Status: StatusSkipped, SkipReason: reason}
}

// Failed builds a Result for a resolution that ended in an error.
// partialURL may be empty when no hop was reached.
func Failed(kind FailureKind, partialURL string) Result {
	return Result{Status: StatusFailed, FailureKind: kind, PartialURL: partialURL}
}
