package study

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Debouncer collapses identical in-flight submissions into one generation
// call. A nil *Debouncer runs every call.
type Debouncer struct {
	group singleflight.Group
}

func NewDebouncer() *Debouncer { return &Debouncer{} }

// debounceKey joins the parts of a request into a singleflight key.
func debounceKey(kind string, parts ...any) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range parts {
		fmt.Fprintf(&b, "|%v", p)
	}
	return b.String()
}

// run executes fn once per key among concurrent callers. The shared call is
// detached from any single caller's cancellation; a caller whose ctx ends
// stops waiting but the call completes for the others.
func run[T any](ctx context.Context, d *Debouncer, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	if d == nil {
		v, err := fn(ctx)
		return v, false, err
	}
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		return fn(shared)
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}
