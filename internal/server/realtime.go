package server

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/syncreset/internal/resets"
)

const (
	realtimeEventHeartbeat = "heartbeat"
	realtimeSource         = "syncreset"
	realtimeBufferSize     = 16
)

// RealtimeDispatcher fans committed reset events out to SSE subscribers.
// Slow subscribers drop events rather than block the publisher.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan resets.Event
	nextID      int64
	bufferSize  int
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]chan resets.Event),
		bufferSize:  realtimeBufferSize,
	}
}

// Subscribe registers a stream that lives until ctx is done or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan resets.Event, func()) {
	stream := make(chan resets.Event, d.bufferSize)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish implements resets.EventPublisher.
func (d *RealtimeDispatcher) Publish(event resets.Event) {
	if event.Type == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, stream := range d.subscribers {
		select {
		case stream <- event:
		default:
		}
	}
}

func (d *RealtimeDispatcher) subscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
