package cache

import "context"

type discardKey struct{}

// WithDiscard marks every fetch made with the returned context as a freshness
// request: cached entries are bypassed and overwritten.
func WithDiscard(ctx context.Context) context.Context {
	return context.WithValue(ctx, discardKey{}, true)
}

// DiscardRequested reports whether ctx carries a freshness request
func DiscardRequested(ctx context.Context) bool {
	v, _ := ctx.Value(discardKey{}).(bool)
	return v
}
