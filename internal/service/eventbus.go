package service

import (
	"sync"

	"github.com/videoflix/videoflix/internal/domain"
)

// Event notifies subscribers about a video's conversion progress.
type Event struct {
	Status  domain.ConversionStatus `json:"conversion_status"`
	Message string                  `json:"error_message,omitempty"`
}

// EventBus fans conversion events out to interested clients, keyed by video
// ID. Slow subscribers lose events rather than blocking the workers.
type EventBus struct {
	subscribers map[int64][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[int64][]chan Event),
	}
}

func (eb *EventBus) Subscribe(videoID int64) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[videoID] = append(eb.subscribers[videoID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(videoID int64, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[videoID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[videoID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[videoID]) == 0 {
		delete(eb.subscribers, videoID)
	}
}

func (eb *EventBus) Publish(videoID int64, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[videoID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
