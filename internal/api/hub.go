// Package api provides HTTP API server functionality.
package api

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/graaaaa/roomcheck/internal/domain"
)

const (
	defaultSubscriberBufferSize = 16
	defaultBroadcastBufferSize  = 64
)

// Stream message types.
const (
	MessageAttendance  = "attendance"
	MessageScanResult  = "scan_result"
	MessageRoomTimeout = "room_timeout"
)

// RoomTimeout reports a time-out-all run that wrote events.
type RoomTimeout struct {
	RoomID  int64 `json:"roomId"`
	Written int   `json:"written"`
}

// Message is one server-sent event.
type Message struct {
	ID   uint64
	Type string
	Data any
}

// Subscriber represents an SSE client connection.
type Subscriber struct {
	messages chan *Message
	done     chan struct{}
}

// Messages returns the channel for receiving messages.
func (s *Subscriber) Messages() <-chan *Message {
	return s.messages
}

// Done returns a channel that is closed when the subscriber is unsubscribed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub manages SSE subscribers and broadcasts attendance activity.
// A single goroutine owns the subscriber set.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan *Message
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	seq        atomic.Uint64

	subscriberBufferSize int
	logger               *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubSubscriberBufferSize sets the buffer size for subscriber channels.
func WithHubSubscriberBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBufferSize = size
		}
	}
}

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a new SSE hub.
// Call Run() to start the hub's event loop.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		register:             make(chan *Subscriber),
		unregister:           make(chan *Subscriber),
		broadcast:            make(chan *Message, defaultBroadcastBufferSize),
		stop:                 make(chan struct{}),
		stopped:              make(chan struct{}),
		subscriberBufferSize: defaultSubscriberBufferSize,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop. It blocks until Stop is called.
func (h *Hub) Run() {
	clients := make(map[*Subscriber]struct{})
	defer close(h.stopped)

	for {
		select {
		case sub := <-h.register:
			clients[sub] = struct{}{}
			h.logger.Debug("subscriber registered", "count", len(clients))

		case sub := <-h.unregister:
			if _, ok := clients[sub]; ok {
				delete(clients, sub)
				close(sub.done)
				close(sub.messages)
				h.logger.Debug("subscriber unregistered", "count", len(clients))
			}

		case m := <-h.broadcast:
			for sub := range clients {
				select {
				case sub.messages <- m:
				default:
					// Slow client; it misses this message and can poll instead.
					h.logger.Warn("subscriber channel full, message dropped",
						"message_id", m.ID,
						"message_type", m.Type,
					)
				}
			}

		case <-h.stop:
			for sub := range clients {
				close(sub.done)
				close(sub.messages)
			}
			return
		}
	}
}

// Stop stops the hub's event loop and waits for it to exit.
// Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.stopped
}

// Subscribe creates a new subscriber.
// The caller must call Unsubscribe when done.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		messages: make(chan *Message, h.subscriberBufferSize),
		done:     make(chan struct{}),
	}

	select {
	case h.register <- sub:
		return sub
	case <-h.stopped:
		close(sub.done)
		close(sub.messages)
		return sub
	}
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	select {
	case h.unregister <- sub:
	case <-h.stopped:
	}
}

// PublishAttendance broadcasts a committed attendance event.
func (h *Hub) PublishAttendance(e domain.Event) {
	h.publish(MessageAttendance, e)
}

// PublishScanResult broadcasts the outcome of a hardware scan.
func (h *Hub) PublishScanResult(r domain.ScanResult) {
	h.publish(MessageScanResult, r)
}

// PublishRoomTimeout broadcasts that a room was bulk timed out.
func (h *Hub) PublishRoomTimeout(roomID int64, written int) {
	h.publish(MessageRoomTimeout, RoomTimeout{RoomID: roomID, Written: written})
}

// publish never blocks: if the broadcast channel is full, the message is dropped.
func (h *Hub) publish(typ string, data any) {
	m := &Message{ID: h.seq.Add(1), Type: typ, Data: data}

	select {
	case h.broadcast <- m:
	case <-h.stopped:
	default:
		h.logger.Warn("broadcast channel full, message dropped",
			"message_id", m.ID,
			"message_type", m.Type,
		)
	}
}
