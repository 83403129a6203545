// Package pubsub broadcasts discovery results to registered subscribers
// with demand-driven delivery: a subscriber receives the next item only
// after it finished processing the current one, so a slow subscriber
// backpressures the publisher instead of being overwhelmed.
package pubsub

import (
	"context"
	"sync"

	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/shared"
	"github.com/cloudassure/engine/pkg/logger"
)

// DefaultBacklog is the per-subscriber buffer size used when the bus does
// not configure its own.
const DefaultBacklog = 16

// Subscriber consumes published discovery results. OnNext is invoked once
// per item in publication order; returning an error is logged and does not
// tear down the subscription. OnComplete and OnError signal permanent
// subscription termination.
type Subscriber interface {
	Name() string
	OnNext(ctx context.Context, result *discovery.Result) error
	OnComplete()
	OnError(err error)
}

type subscription struct {
	subscriber Subscriber
	items      chan *discovery.Result
	// closing asks the delivery loop to drain the backlog and complete.
	// items is never closed: publishers may be blocked sending on it.
	closing chan struct{}
	aborted chan struct{}
}

// Bus is a single publisher broadcasting every published result to all
// registered subscribers.
type Bus struct {
	log     *logger.Logger
	backlog int

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
	err    error
	wg     sync.WaitGroup
}

// New creates a new bus. backlog bounds how many undelivered items one
// subscriber may accumulate before the publisher blocks.
func New(log *logger.Logger, backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{
		log:     log,
		backlog: backlog,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe registers a subscriber and starts its delivery loop. The loop
// requests items one at a time; OnNext must return before the next item is
// handed over.
func (b *Bus) Subscribe(s Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return shared.NewDomainError("PUBSUB_CLOSED", "bus is closed", shared.ErrInvalidInput)
	}
	if _, exists := b.subs[s.Name()]; exists {
		return shared.NewDomainError("PUBSUB_DUPLICATE", "subscriber already registered: "+s.Name(), shared.ErrAlreadyExists)
	}

	sub := &subscription{
		subscriber: s,
		items:      make(chan *discovery.Result, b.backlog),
		closing:    make(chan struct{}),
		aborted:    make(chan struct{}),
	}
	b.subs[s.Name()] = sub

	b.wg.Add(1)
	go b.deliver(sub)
	return nil
}

// deliver is the per-subscriber pull loop. A closing signal drains the
// backlog first so every accepted item is delivered exactly once; an
// abort terminates immediately.
func (b *Bus) deliver(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case <-sub.aborted:
			sub.subscriber.OnError(b.err)
			return
		case result := <-sub.items:
			b.handle(sub, result)
		case <-sub.closing:
			for {
				select {
				case result := <-sub.items:
					b.handle(sub, result)
				default:
					sub.subscriber.OnComplete()
					return
				}
			}
		}
	}
}

func (b *Bus) handle(sub *subscription, result *discovery.Result) {
	if err := sub.subscriber.OnNext(context.Background(), result); err != nil {
		b.log.Error("subscriber failed to process discovery result",
			"subscriber", sub.subscriber.Name(),
			"scan_id", result.ScanID,
			"error", err)
	}
}

// Publish broadcasts a result to all current subscribers. It blocks while
// a subscriber's backlog is full, and returns early if the context is
// cancelled before every subscriber accepted the item.
func (b *Bus) Publish(ctx context.Context, result *discovery.Result) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return shared.NewDomainError("PUBSUB_CLOSED", "bus is closed", shared.ErrInvalidInput)
	}
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.items <- result:
		case <-sub.closing:
			// The subscriber detached while we were blocked; skip it.
		case <-sub.aborted:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Unsubscribe removes a subscriber. Its backlog is still drained; it
// receives OnComplete after the last pending item. A publisher blocked
// on the subscriber's full backlog is released without error.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()
	if ok {
		close(sub.closing)
	}
}

// Close terminates all subscriptions after draining their backlogs and
// waits for the delivery loops to finish.
func (b *Bus) Close() {
	for _, sub := range b.detach(nil) {
		close(sub.closing)
	}
	b.wg.Wait()
}

// Abort terminates all subscriptions without draining, signalling the
// error to every subscriber.
func (b *Bus) Abort(err error) {
	for _, sub := range b.detach(err) {
		close(sub.aborted)
	}
	b.wg.Wait()
}

func (b *Bus) detach(err error) map[string]*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.err = err
	subs := b.subs
	b.subs = make(map[string]*subscription)
	return subs
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
