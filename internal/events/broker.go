// Package events streams pipeline step events to subscribers, including
// live operator dashboards over WebSocket.
package events

import (
	"sync"
	"time"
)

// Event is one pipeline step outcome, published as the step is logged.
type Event struct {
	RunID   string    `json:"runId"`
	Profile string    `json:"profile,omitempty"`
	Step    string    `json:"step"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered event channel. Call the returned cancel
// func to unsubscribe; the channel is closed on unsubscribe.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish fans the event out. Slow subscribers drop events rather than
// blocking the pipeline.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
