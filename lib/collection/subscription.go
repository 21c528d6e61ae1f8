package collection

import (
	"sync"

	"github.com/ValentinKolb/memdoc/lib/db/util"
	"github.com/ValentinKolb/memdoc/lib/document"
)

// EventType is the kind of change an Event reports
type EventType uint8

const (
	EventInsert EventType = iota + 1
	EventUpdate
	EventDelete
	EventExpire
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	case EventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// Event describes a committed change. Document is the new version for
// inserts and updates and the removed version for deletes and expiries.
// Previous is set for updates only.
type Event struct {
	Type       EventType
	Collection string
	Key        string
	Document   document.Document
	Previous   document.Document
}

// Filter selects the events a subscription receives
type Filter func(Event) bool

// Events passes events of the given types
func Events(types ...EventType) Filter {
	return func(e Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	}
}

// FieldChanged passes updates that change field (including adding or
// removing it)
func FieldChanged(field string) Filter {
	return func(e Event) bool {
		if e.Type != EventUpdate {
			return false
		}
		prev, hadPrev := e.Previous.Get(field)
		cur, hasCur := e.Document.Get(field)
		return hadPrev != hasCur || !prev.Equal(cur)
	}
}

// --------------------------------------------------------------------------
// Subscription
// --------------------------------------------------------------------------

// Subscription delivers matching events to a handler on its own goroutine,
// in commit order. A slow handler delays only its own subscription.
type Subscription struct {
	id      uint64
	hub     *hub
	filters []Filter
	handler func(Event)
	queue   *util.LockFreeMPSC[Event]
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription) matches(e Event) bool {
	for _, f := range s.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

func (s *Subscription) run() {
	defer close(s.done)
	for e := range s.queue.Recv() {
		s.deliver(e)
	}
}

func (s *Subscription) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			plog.Errorf("subscription %d on %q: handler panicked on %s of %q: %v", s.id, e.Collection, e.Type, e.Key, r)
		}
	}()
	s.handler(e)
}

// Close stops the subscription. Events published before Close are still
// delivered; Done is closed after the last one. Close does not wait and may
// be called from within the handler.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		s.queue.Close()
	})
}

// Done is closed once the subscription is closed and drained
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Pending returns the number of events waiting for the handler
func (s *Subscription) Pending() int {
	return s.queue.Len()
}

// --------------------------------------------------------------------------
// Hub
// --------------------------------------------------------------------------

// hub fans events out to the subscriptions of one collection
type hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]*Subscription)}
}

func (h *hub) subscribe(handler func(Event), filters []Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		id:      h.nextID,
		hub:     h,
		filters: filters,
		handler: handler,
		queue:   util.NewLockFreeMPSC[Event](),
		done:    make(chan struct{}),
	}
	h.subs[s.id] = s
	go s.run()
	return s
}

// publish hands e to every matching subscription. It never blocks on
// handlers.
func (h *hub) publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.matches(e) {
			s.queue.Push(e)
		}
	}
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// closeAll closes every subscription and waits until all are drained
func (h *hub) closeAll() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Close()
	}
	for _, s := range subs {
		<-s.Done()
	}
}
