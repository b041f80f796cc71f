// Package prober defines the HTTP probe capability used by the redirect
// follower: issue a single request and observe the raw status code and
// Location header without the transport following redirects on its own.
package prober

import "context"

// Response carries the parts of an HTTP response the redirect follower needs.
// Bodies are never read; only headers matter for redirect resolution.
type Response struct {
	StatusCode int    // StatusCode is the HTTP status of the response.
	Location   string // Location is the raw Location header value, empty when absent.
}

// Client is the abstraction over the HTTP transport. Implementations must not
// follow redirects themselves so the follower can observe every hop.
//
//go:generate mockgen -package mockprober -source=prober.go -destination=mock/mockprober.go *
type Client interface {
	// Probe issues a single request with the given method (HEAD or GET) and
	// returns the response status and Location header.
	Probe(ctx context.Context, method string, url string) (Response, error)
}
