package engine

import (
	"context"
	"unshorten/pkg/domain"
)

//go:generate mockgen -package mockengine -source=interface.go -destination=mock/mockengine.go *
type Expander interface {
	ResolveBatch(ctx context.Context, requests []domain.Request) []domain.Result
}

// Follower expands one URL to its terminal destination by walking its
// redirect chain. Implemented by resolver.Follower.
type Follower interface {
	Follow(ctx context.Context, rawURL string, maxDepth int) domain.Result
}
