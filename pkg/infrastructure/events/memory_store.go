package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

type InMemoryEventStore struct {
	streams     map[string][]Event
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	position    int
	allEvents   []Event
	logger      *zap.Logger
}

func NewInMemoryEventStore(logger *zap.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		logger:      logger,
	}
}

// Verify interface compliance
var (
	_ EventStore = (*InMemoryEventStore)(nil)
	_ Publisher  = (*InMemoryEventStore)(nil)
)

// Publish appends every event to its own stream
func (s *InMemoryEventStore) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		if err := s.AppendEvent(ctx, e.StreamID(), e); err != nil {
			return err
		}
	}
	return nil
}

// AppendEvent stores the event with the next stream version and hands it to
// the matching subscribers once the store lock is released.
func (s *InMemoryEventStore) AppendEvent(ctx context.Context, streamID string, event Event) error {
	s.mutex.Lock()
	eventWithVersion := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		Tenant:       event.TenantID(),
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}
	s.streams[streamID] = append(s.streams[streamID], eventWithVersion)
	s.allEvents = append(s.allEvents, eventWithVersion)
	s.position++

	handlers := append([]EventHandler(nil), s.subscribers[event.Type()]...)
	handlers = append(handlers, s.subscribers[AllEvents]...)
	s.mutex.Unlock()

	s.notify(ctx, handlers, eventWithVersion)
	return nil
}

func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(events) {
		return []Event{}, nil
	}

	return append([]Event(nil), events[fromVersion-1:]...), nil
}

func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}

	if fromPosition >= len(s.allEvents) {
		return []Event{}, nil
	}

	return append([]Event(nil), s.allEvents[fromPosition:]...), nil
}

// Subscribe registers handler for eventTypes. AllEvents matches every type.
func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	if handler == nil {
		return errors.New("subscribe: handler cannot be nil")
	}
	if len(eventTypes) == 0 {
		return errors.New("subscribe: at least one event type is required")
	}
	for _, eventType := range eventTypes {
		if eventType == "" {
			return errors.New("subscribe: event type cannot be empty")
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0, len(handlers))
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}

// notify runs handlers synchronously. A failing handler is logged and does
// not stop the others: the event is already stored.
func (s *InMemoryEventStore) notify(ctx context.Context, handlers []EventHandler, event Event) {
	for _, handler := range handlers {
		if !handler.CanHandle(event.Type()) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			s.logger.Error("event handler failed",
				zap.String("event_type", event.Type()),
				zap.String("stream_id", event.StreamID()),
				zap.Error(err))
		}
	}
}
