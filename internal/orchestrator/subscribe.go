package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/hivelog/internal/event"
)

// Handler receives a delivered event.
type Handler func(e event.Event)

type subscription struct {
	id      uint64
	handler Handler
}

// subscriptions maps an event type, or event.Wildcard, to its handlers in
// subscribe order.
type subscriptions struct {
	mu     sync.Mutex
	nextID uint64
	byType map[event.Type][]subscription
}

// Subscribe registers h for events of typ, or for every event when typ is
// event.Wildcard. The returned function unsubscribes; calling it more than
// once is harmless.
//
// Type-specific handlers run before wildcard handlers. Delivery is at most
// once and never replays history.
func (o *Orchestrator) Subscribe(typ event.Type, h Handler) func() {
	s := &o.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byType == nil {
		s.byType = make(map[event.Type][]subscription)
	}
	s.nextID++
	id := s.nextID
	s.byType[typ] = append(s.byType[typ], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.byType[typ]
			for i, sub := range subs {
				if sub.id == id {
					s.byType[typ] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// handlers snapshots the handlers for typ so they can unsubscribe during
// delivery.
func (s *subscriptions) handlers(typ event.Type) []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Handler
	for _, sub := range s.byType[typ] {
		out = append(out, sub.handler)
	}
	if typ != event.Wildcard {
		for _, sub := range s.byType[event.Wildcard] {
			out = append(out, sub.handler)
		}
	}
	return out
}

// drain delivers queued events in append order. Only the outermost caller
// delivers; appends made by handlers are queued and picked up by the loop.
func (o *Orchestrator) drain() {
	o.mu.Lock()
	if o.delivering {
		o.mu.Unlock()
		return
	}
	o.delivering = true
	for len(o.pending) > 0 {
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()
		for _, e := range batch {
			o.notify(e)
		}
		o.mu.Lock()
	}
	o.delivering = false
	o.mu.Unlock()
}

func (o *Orchestrator) notify(e event.Event) {
	for _, h := range o.subs.handlers(e.Type) {
		o.deliver(h, e)
	}
}

func (o *Orchestrator) deliver(h Handler, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.handlerPanics.Add(context.Background(), 1)
			o.logger.Error("subscriber panicked",
				"event_id", e.ID,
				"type", e.Type,
				"panic", fmt.Sprint(r))
		}
	}()
	h(e)
	o.metrics.deliveries.Add(context.Background(), 1)
}
