package hook

import (
	"context"
	"sync/atomic"
)

type selfOriginKey struct{}

// WithSelfOriginated marks the context as carrying a primary email change
// that this module itself initiated. Handlers that would otherwise treat
// the change as externally initiated consume the mark and skip processing.
//
// The mark is scoped to the call chain of the returned context, so
// concurrent requests cannot observe each other's marks.
func WithSelfOriginated(ctx context.Context) context.Context {
	flag := &atomic.Bool{}
	flag.Store(true)
	return context.WithValue(ctx, selfOriginKey{}, flag)
}

// ConsumeSelfOriginated reports whether the context carries a self-origin
// mark, clearing it so the mark is observed exactly once.
func ConsumeSelfOriginated(ctx context.Context) bool {
	flag, ok := ctx.Value(selfOriginKey{}).(*atomic.Bool)
	if !ok {
		return false
	}
	return flag.Swap(false)
}
