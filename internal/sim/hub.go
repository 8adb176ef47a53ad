package sim

import (
	"sync"

	"otsim/internal/telemetry"
)

// Hub fans telemetry frames out to subscribers. The loop is the only
// producer and must never block on a slow or absent consumer: each
// subscriber gets a bounded buffer and the oldest frame is dropped when
// the buffer is full.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan telemetry.Frame
	nextID  int
	bufSize int
	latest  *telemetry.Frame
	dropped func()
}

// NewHub creates a hub with per-subscriber buffers of bufSize frames.
// onDrop, if non-nil, is invoked once per dropped frame.
func NewHub(bufSize int, onDrop func()) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		subs:    make(map[int]chan telemetry.Frame),
		bufSize: bufSize,
		dropped: onDrop,
	}
}

// Subscribe returns a frame channel and a cancel function. The channel is
// closed on cancel or when the run reaches a terminal state.
func (h *Hub) Subscribe() (<-chan telemetry.Frame, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan telemetry.Frame, h.bufSize)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers f to every subscriber, evicting the oldest buffered
// frame when a subscriber has fallen behind.
func (h *Hub) Publish(f telemetry.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &f
	for _, ch := range h.subs {
		select {
		case ch <- f:
			continue
		default:
		}
		// Buffer full: drop the oldest frame, then retry once. The second
		// send can only fail if the subscriber raced a receive in between,
		// in which case the buffer has room anyway.
		select {
		case <-ch:
			if h.dropped != nil {
				h.dropped()
			}
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}

// Latest returns the most recently published frame.
func (h *Hub) Latest() (telemetry.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return telemetry.Frame{}, false
	}
	return *h.latest, true
}

// Close closes every subscriber channel. Called once when the run ends.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
