package httpprober_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"unshorten/pkg/prober"
	"unshorten/pkg/prober/httpprober"
	"unshorten/pkg/serrors"

	"github.com/stretchr/testify/require"
)

// rtFunc allows using a function as an http.RoundTripper.
type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(fn rtFunc) prober.Client {
	return httpprober.New(&http.Client{Transport: fn})
}

func TestClient_Probe_statusAndLocation(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodHead, r.Method)
		require.Equal(t, "bit.ly", r.URL.Host)

		h := http.Header{}
		h.Set("Location", "http://example.com/x")

		return &http.Response{
			StatusCode: http.StatusMovedPermanently,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})

	res, err := c.Probe(context.Background(), http.MethodHead, "http://bit.ly/abc")
	require.NoError(t, err)
	require.Equal(t, http.StatusMovedPermanently, res.StatusCode)
	require.Equal(t, "http://example.com/x", res.Location)
}

func TestClient_Probe_doesNotFollowRedirects(t *testing.T) {
	calls := 0
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		h := http.Header{}
		h.Set("Location", "http://example.com/next")

		return &http.Response{
			StatusCode: http.StatusFound,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})

	res, err := c.Probe(context.Background(), http.MethodGet, "http://short.co/a")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, res.StatusCode)
	require.Equal(t, 1, calls, "the transport must observe a single hop, not the whole chain")
}

func TestClient_Probe_networkError(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := c.Probe(context.Background(), http.MethodHead, "http://unreachable.example/")
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrNetwork)
}

func TestClient_Probe_timeout(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("probing: %w", context.DeadlineExceeded)
	})

	_, err := c.Probe(context.Background(), http.MethodHead, "http://slow.example/")
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrTimeout)
}

func TestClient_Probe_invalidURL(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		t.Fatal("transport must not be reached for an invalid URL")

		return nil, nil
	})

	_, err := c.Probe(context.Background(), http.MethodHead, "http://exa mple.com")
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrMalformedURL)
}
