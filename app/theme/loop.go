package theme

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Loop runs event handlers one at a time on a single goroutine.
// Controllers and pages are touched only from inside the loop.
type Loop struct {
	events chan func()
}

// NewLoop makes a loop with the given queue size.
func NewLoop(queue int) *Loop {
	if queue <= 0 {
		queue = 64
	}
	return &Loop{events: make(chan func(), queue)}
}

// Run processes events until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.events:
			fn()
		}
	}
}

// Post queues fn without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case l.events <- fn:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("post event: %w", ctx.Err())
	}
}

// Do queues fn and waits until it has run. If ctx is canceled before fn starts, fn is skipped
// and Do returns the context error; once fn has started Do waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	const (
		pending int32 = iota
		started
		abandoned
	)
	var state atomic.Int32
	done := make(chan struct{})
	if err := l.Post(ctx, func() {
		defer close(done)
		if !state.CompareAndSwap(pending, started) {
			return
		}
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(pending, abandoned) {
			return fmt.Errorf("wait event: %w", ctx.Err())
		}
		<-done
		return nil
	}
}
