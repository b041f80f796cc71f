package rediscache_test

import (
	"context"
	"testing"
	"time"
	"unshorten/pkg/cache/rediscache"
	"unshorten/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s := rediscache.New(rediscache.Options{Addr: mr.Addr(), TTL: time.Hour})
	defer func() {
		_ = s.Close()
	}()
	ctx := context.Background()

	got, err := s.Get(ctx, "http://bit.ly/abc")
	require.NoError(t, err)
	require.Nil(t, got, "absent key must return nil, nil")

	want := domain.Resolved("http://example.com/x", 1, 200)
	require.NoError(t, s.Set(ctx, "http://bit.ly/abc", want))

	got, err = s.Get(ctx, "http://bit.ly/abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want, *got)

	// entries expire after the configured TTL
	mr.FastForward(2 * time.Hour)
	got, err = s.Get(ctx, "http://bit.ly/abc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	s := rediscache.New(rediscache.Options{Addr: mr.Addr()})
	defer func() {
		_ = s.Close()
	}()

	require.NoError(t, mr.Set("unshorten:k", "not-json"))

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestStore_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	s := rediscache.New(rediscache.Options{Addr: mr.Addr()})
	defer func() {
		_ = s.Close()
	}()
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
}
