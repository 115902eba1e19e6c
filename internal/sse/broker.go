// Package sse streams item changes to browser clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/incremental/internal/models"
)

// QueueUpdated tells clients to refetch the review queue.
const QueueUpdated = "queue.updated"

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ItemPayload is the data of an item.* event. Events for items that left
// the schedule (done, removed) carry only the ID.
type ItemPayload struct {
	ID           string     `json:"id"`
	Priority     *float64   `json:"priority,omitempty"`
	NextReviewAt *time.Time `json:"next_review_at,omitempty"`
	Reviews      int        `json:"reviews,omitempty"`
}

func newItemPayload(it models.Item) ItemPayload {
	p := ItemPayload{ID: it.ID}
	if it.NextReviewAt.IsZero() {
		return p
	}
	next := it.NextReviewAt.UTC()
	priority := it.Priority
	p.Priority = &priority
	p.NextReviewAt = &next
	p.Reviews = len(it.History)
	return p
}

type itemEvent struct {
	kind string
	item models.Item
}

// Broker fans events out to subscribers.
//
// All client bookkeeping and the queue.updated throttle live in a single
// loop goroutine; the exported methods only talk to it over channels.
type Broker struct {
	queueMin  time.Duration
	keepalive time.Duration
	seq       atomic.Uint64

	subscribe   chan chan []byte
	unsubscribe chan chan []byte
	publish     chan Event
	items       chan itemEvent
	count       chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits queue.updated at most once per
// queueThrottle.
func NewBroker(queueThrottle time.Duration) *Broker {
	if queueThrottle <= 0 {
		queueThrottle = time.Second
	}
	b := &Broker{
		queueMin:    queueThrottle,
		keepalive:   25 * time.Second,
		subscribe:   make(chan chan []byte),
		unsubscribe: make(chan chan []byte),
		publish:     make(chan Event, 256),
		items:       make(chan itemEvent, 256),
		count:       make(chan chan int),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) frame(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", b.seq.Add(1), ev.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastQueue time.Time

	send := func(ev Event) {
		msg, err := b.frame(ev)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range clients {
				close(ch)
			}
			return
		case ch := <-b.subscribe:
			clients[ch] = struct{}{}
		case ch := <-b.unsubscribe:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
		case ev := <-b.publish:
			send(ev)
		case ev := <-b.items:
			send(Event{Type: ev.kind, Data: newItemPayload(ev.item)})
			if now := time.Now(); now.Sub(lastQueue) >= b.queueMin {
				lastQueue = now
				send(Event{Type: QueueUpdated, Data: map[string]string{}})
			}
		case resp := <-b.count:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribe <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribe <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends ev to every client.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publish <- ev:
	case <-b.stopped:
	}
}

// PublishItemEvent broadcasts an item change followed by a throttled
// queue.updated.
func (b *Broker) PublishItemEvent(kind string, item models.Item) {
	if b.closed.Load() {
		return
	}
	select {
	case b.items <- itemEvent{kind: kind, item: item}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepalive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
