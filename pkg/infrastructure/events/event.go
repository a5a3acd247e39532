package events

import (
	"context"
	"time"
)

type Event interface {
	Type() string
	StreamID() string
	TenantID() string
	Data() interface{}
	Timestamp() time.Time
	Version() int
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	CanHandle(eventType string) bool
}

type EventStore interface {
	AppendEvent(ctx context.Context, streamID string, event Event) error
	ReadEvents(streamID string, fromVersion int) ([]Event, error)
	ReadAllEvents(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

// Publisher is what the services depend on. Events are published only after
// the unit of work that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

type BaseEvent struct {
	EventType    string
	Stream       string
	Tenant       string
	EventData    interface{}
	EventTime    time.Time
	EventVersion int
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) StreamID() string {
	return e.Stream
}

func (e BaseEvent) TenantID() string {
	return e.Tenant
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Version() int {
	return e.EventVersion
}

func NewEvent(eventType, tenantID, streamID string, data interface{}) Event {
	return BaseEvent{
		EventType:    eventType,
		Stream:       streamID,
		Tenant:       tenantID,
		EventData:    data,
		EventTime:    time.Now().UTC(),
		EventVersion: 1,
	}
}

// HandlerFunc adapts a function into an EventHandler for the given types.
// An empty type list handles everything.
type HandlerFunc struct {
	Types []string
	Fn    func(ctx context.Context, event Event) error
}

func (h *HandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

func (h *HandlerFunc) CanHandle(eventType string) bool {
	if len(h.Types) == 0 {
		return true
	}
	for _, t := range h.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
