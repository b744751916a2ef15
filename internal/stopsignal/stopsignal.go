// Package stopsignal provides the poll-able stop requests checked by the
// job between chunks.
package stopsignal

import (
	"context"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Func adapts a function to dynis.StopSignal.
type Func func(ctx context.Context) (bool, error)

func (f Func) ShouldStop(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Never is a signal that is never set.
var Never dynis.StopSignal = Func(func(context.Context) (bool, error) { return false, nil })

// Context reports stop once stopCtx is done. Pass a context separate from
// the one running the job so in-flight writes of the chunk still complete.
func Context(stopCtx context.Context) dynis.StopSignal {
	return Func(func(context.Context) (bool, error) {
		return stopCtx.Err() != nil, nil
	})
}

// Any reports stop when one of signals does. Signals are polled in order
// and the first error is returned.
func Any(signals ...dynis.StopSignal) dynis.StopSignal {
	return Func(func(ctx context.Context) (bool, error) {
		for _, s := range signals {
			if s == nil {
				continue
			}
			stop, err := s.ShouldStop(ctx)
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	})
}
