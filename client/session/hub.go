package session

import (
	"sync"

	"condoadmin/internal/metrics"
	"condoadmin/pkg/logger"
)

// Subscription receives session events on C until it is closed, either by
// Close, by the manager being disposed, or because the reader fell behind.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	hub  *hub
	once sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.stopped:
		}
	})
}

// hub fans events out to subscribers from a single goroutine. Sends never
// block: a subscriber whose buffer is full is dropped.
type hub struct {
	subscribers map[*Subscription]struct{}
	register    chan *Subscription
	unregister  chan *Subscription
	broadcast   chan Event
	done        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	observer    metrics.SessionObserver
}

func newHub(observer metrics.SessionObserver) *hub {
	return &hub{
		subscribers: make(map[*Subscription]struct{}),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		broadcast:   make(chan Event),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		observer:    observer,
	}
}

func (h *hub) run() {
	defer close(h.stopped)
	for {
		select {
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			h.observer.IncSubscribers()
		case s := <-h.unregister:
			h.drop(s)
		case ev := <-h.broadcast:
			for s := range h.subscribers {
				select {
				case s.ch <- ev:
				default:
					logger.Warn("session subscriber too slow, dropping")
					h.drop(s)
				}
			}
		case <-h.done:
			for s := range h.subscribers {
				h.drop(s)
			}
			return
		}
	}
}

func (h *hub) drop(s *Subscription) {
	if _, ok := h.subscribers[s]; !ok {
		return
	}
	delete(h.subscribers, s)
	close(s.ch)
	h.observer.DecSubscribers()
}

func (h *hub) subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{ch: make(chan Event, buffer), hub: h}
	s.C = s.ch
	select {
	case h.register <- s:
	case <-h.done:
		close(s.ch)
	}
	return s
}

func (h *hub) publish(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}
