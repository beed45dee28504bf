// Package events provides the in-process event bus feeding the SSE stream
// and the structured event log.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	PlanGenerated       EventType = "PLAN_GENERATED"
	OrdersGenerated     EventType = "ORDERS_GENERATED"
	StressTestCompleted EventType = "STRESS_TEST_COMPLETED"
	PricesRefreshed     EventType = "PRICES_REFRESHED"
	SizingRecommended   EventType = "SIZING_RECOMMENDED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Bus fans events out to subscribers. Publishing never blocks: slow
// subscribers drop events once their buffer fills.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan *Event
	nextID int
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan *Event),
		log:  log.With().Str("service", "events").Logger(),
	}
}

// Publish emits an event to every subscriber and the event log.
func (b *Bus) Publish(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn().Int("subscriber", id).Str("event_type", string(eventType)).Msg("Subscriber buffer full, dropping event")
		}
	}
}

// PublishError emits an error event
func (b *Bus) PublishError(module string, err error) {
	b.Publish(ErrorOccurred, module, map[string]interface{}{"error": err.Error()})
}

// Subscribe registers a new subscriber and returns its id and channel.
func (b *Bus) Subscribe() (int, <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *Event, 100)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}
