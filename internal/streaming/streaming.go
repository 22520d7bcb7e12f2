// Package streaming fans view events out to in-process subscribers.
package streaming

import "sync"

// Payload is a single event.
type Payload struct {
	Event string
	Data  any
}

// Mux delivers every published Payload to every current subscriber.
// The zero value is ready to use.
type Mux struct {
	mu            sync.Mutex
	subscriptions map[*Subscription]chan<- Payload
}

// Publish sends the event to all subscribers. Subscribers that have not
// drained their previous event are dropped.
func (m *Mux) Publish(event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub, ch := range m.subscriptions {
		select {
		case ch <- Payload{Event: event, Data: data}:
		default:
			// too slow, unsubscribe
			m.cancelLocked(sub)
		}
	}
}

// Subscribe returns a new subscription with the given buffer size.
func (m *Mux) Subscribe(buffer int) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Payload, buffer)
	sub := &Subscription{
		mux: m,
		C:   ch,
	}
	if m.subscriptions == nil {
		m.subscriptions = make(map[*Subscription]chan<- Payload)
	}
	m.subscriptions[sub] = ch
	return sub
}

func (m *Mux) cancel(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(sub)
}

func (m *Mux) cancelLocked(sub *Subscription) {
	ch, ok := m.subscriptions[sub]
	if ok {
		delete(m.subscriptions, sub)
		close(ch)
	}
}

type Subscription struct {
	mux *Mux
	// The channel to which events are received.
	// It is closed when the subscription is cancelled.
	C <-chan Payload
}

func (s *Subscription) Cancel() {
	s.mux.cancel(s)
}
