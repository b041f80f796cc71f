package engine_test

import (
	"testing"
	"unshorten/internal/engine"
)

func TestCacheKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
		ok   bool
	}{
		{
			name: "lowercase scheme and host; add root path",
			in:   "HTTP://Bit.LY",
			out:  "http://bit.ly/",
			ok:   true,
		},
		{
			name: "remove default http port",
			in:   "http://example.com:80/path",
			out:  "http://example.com/path",
			ok:   true,
		},
		{
			name: "remove default https port",
			in:   "https://example.com:443/",
			out:  "https://example.com/",
			ok:   true,
		},
		{
			name: "keep non-default port",
			in:   "http://example.com:8080/",
			out:  "http://example.com:8080/",
			ok:   true,
		},
		{
			name: "path case is preserved",
			in:   "http://bit.ly/AbC123",
			out:  "http://bit.ly/AbC123",
			ok:   true,
		},
		{
			name: "query is preserved verbatim",
			in:   "http://example.com/p?B=2&a=1",
			out:  "http://example.com/p?B=2&a=1",
			ok:   true,
		},
		{
			name: "remove fragment",
			in:   "https://example.com/path?x=1#Section-2",
			out:  "https://example.com/path?x=1",
			ok:   true,
		},
		{
			name: "relative url returns error",
			in:   "/just/a/path",
			ok:   false,
		},
		{
			name: "non-http scheme returns error",
			in:   "ftp://example.com/file",
			ok:   false,
		},
		{
			name: "scheme without host returns error",
			in:   "http://",
			ok:   false,
		},
		{
			name: "invalid url returns error",
			in:   "http://exa mple.com",
			ok:   false,
		},
	}

	for _, tc := range cases {
		got, u, err := engine.CacheKey(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
			if got != tc.out {
				t.Errorf("%s: got %q, want %q", tc.name, got, tc.out)
			}
			if u == nil {
				t.Errorf("%s: expected a parsed URL", tc.name)
			}
		} else if err == nil {
			t.Errorf("%s: expected error, got none (result %q)", tc.name, got)
		}
	}
}
