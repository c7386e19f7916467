package http

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var reportGroup singleflight.Group

// singleflightBuild collapses concurrent identical report builds. Results are
// never cached past the flight.
func singleflightBuild(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := reportGroup.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
