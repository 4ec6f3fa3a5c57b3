package state

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type EventType int

const (
	EventUnknown EventType = iota
	BlockImported
	BlockFinalized
)

func (e EventType) String() string {
	return [...]string{"EventUnknown", "BlockImported", "BlockFinalized"}[e]
}

// EventBus fans out node notifications. Publishing never blocks: a
// subscriber whose channel is full misses that notification.
type EventBus struct {
	subscribers map[EventType][]chan interface{}
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]chan interface{}),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, ch chan interface{}) {
	if ch == nil {
		panic("channel == nil")
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
}

func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers[eventType] {
		select {
		case ch <- data:
		default:
			log.Debugf("Dropped %s notification for a busy subscriber", eventType)
		}
	}
}

func (eb *EventBus) Unsubscribe(eventType EventType, ch chan interface{}) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers := eb.subscribers[eventType]
	for i, subscriber := range subscribers {
		if subscriber == ch {
			eb.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(eb.subscribers[eventType]) == 0 {
		delete(eb.subscribers, eventType)
	}
}

func (eb *EventBus) SubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType])
}
