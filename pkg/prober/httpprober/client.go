// Package httpprober provides a prober.Client implementation backed by
// net/http.
package httpprober

import (
	"context"
	"errors"
	"net"
	"net/http"
	"unshorten/pkg/prober"
	"unshorten/pkg/serrors"
)

// Client issues single HTTP requests without following redirects.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs the actual HTTP requests.
}

// Probe sends one request and returns the status code and Location header.
// The response body is closed unread since only headers are needed.
// Transport failures are classified into serrors.ErrTimeout (deadline or
// cancellation) or serrors.ErrNetwork (connection, DNS, TLS).
func (c *Client) Probe(ctx context.Context, method string, url string) (prober.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return prober.Response{}, serrors.Wrap(serrors.ErrMalformedURL, err, "could not create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prober.Response{}, classify(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return prober.Response{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}, nil
}

// classify maps a transport error onto the engine's error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return serrors.Wrap(serrors.ErrTimeout, err, "request timed out")
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return serrors.Wrap(serrors.ErrTimeout, err, "request timed out")
	}

	return serrors.Wrap(serrors.ErrNetwork, err, "could not send request")
}

// Ensure Client conforms to the prober.Client interface at compile time.
var _ prober.Client = (*Client)(nil)

// New constructs a Client around the provided http.Client. The client's
// redirect policy is overridden so every redirect is returned to the caller
// instead of being followed by the transport.
func New(httpClient *http.Client) *Client {
	c := *httpClient
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{httpClient: &c}
}
