package events

import (
	"context"
	"sync"
	"time"
)

// Async publishes each event in its own goroutine so the chat loop never
// waits on a broker. Close waits for in-flight events.
type Async struct {
	next    Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Publisher, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

// Publish detaches from the caller's context: the event outlives the request.
func (a *Async) Publish(_ context.Context, ev Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		a.next.Publish(ctx, ev)
	}()
}

func (a *Async) Close() {
	a.wg.Wait()
}
