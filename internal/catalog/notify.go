package catalog

import (
	"context"
	"sync"
)

// NotificationBus is a per-namespace, multi-consumer, single-event
// subscription mechanism. Each Subscription captures the
// bus's per-namespace generation counter at creation time and resolves as
// soon as NotifyChanged advances it, so subscribers never miss a change
// that happened concurrently with Subscribe.
type NotificationBus struct {
	mu  sync.Mutex
	gen map[string]*generation
}

type generation struct {
	value int
	ch    chan struct{}
}

// NewNotificationBus creates an empty bus.
func NewNotificationBus() *NotificationBus {
	return &NotificationBus{gen: make(map[string]*generation)}
}

func (b *NotificationBus) genFor(nss string) *generation {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gen[nss]
	if !ok {
		g = &generation{ch: make(chan struct{})}
		b.gen[nss] = g
	}
	return g
}

// Subscription is a one-shot handle that resolves once the generation it
// was created at has advanced.
type Subscription struct {
	ch chan struct{}
}

// Subscribe returns a Subscription bound to nss's current generation.
func (b *NotificationBus) Subscribe(nss string) Subscription {
	g := b.genFor(nss)
	b.mu.Lock()
	defer b.mu.Unlock()
	return Subscription{ch: g.ch}
}

// Wait blocks until the subscribed generation advances or ctx is done.
func (s Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyChanged advances nss's generation, waking every current
// subscriber. Safe to call whether or not anything is subscribed.
func (b *NotificationBus) NotifyChanged(nss string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gen[nss]
	if !ok {
		return
	}
	g.value++
	close(g.ch)
	g.ch = make(chan struct{})
}
