package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// EventBus dispatches events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(event Event)
	Subscribe(handler Handler, types ...EventType) string
	Unsubscribe(id string)
	Start() error
	Stop(ctx context.Context) error
}

type subscription struct {
	id      string
	types   map[EventType]bool // empty means all types
	handler Handler
}

type eventBus struct {
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBus creates a new event bus with the given dispatch buffer size.
func NewBus(logger hclog.Logger, bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &eventBus{
		logger:        logger.Named("events"),
		subscriptions: make(map[string]*subscription),
		eventChannel:  make(chan Event, bufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the dispatch loop.
func (eb *eventBus) Start() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}
	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.dispatch()

	eb.logger.Debug("event bus started", "buffer_size", cap(eb.eventChannel))
	return nil
}

// Stop stops the event bus, waiting for the dispatcher to drain or the
// context to expire.
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish publishes an event, blocking until it is queued or ctx expires.
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	select {
	case eb.eventChannel <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync publishes an event without blocking; events are dropped when
// the buffer is full.
func (eb *eventBus) PublishAsync(event Event) {
	select {
	case eb.eventChannel <- event:
	default:
		eb.logger.Warn("event dropped, dispatch buffer full", "type", event.Type)
	}
}

// Subscribe registers a handler for the given event types. No types means
// all events. Returns the subscription id.
func (eb *eventBus) Subscribe(handler Handler, types ...EventType) string {
	sub := &subscription{
		id:      uuid.NewString(),
		types:   make(map[EventType]bool, len(types)),
		handler: handler,
	}
	for _, t := range types {
		sub.types[t] = true
	}

	eb.mu.Lock()
	eb.subscriptions[sub.id] = sub
	eb.mu.Unlock()

	return sub.id
}

// Unsubscribe removes a subscription.
func (eb *eventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	delete(eb.subscriptions, id)
	eb.mu.Unlock()
}

func (eb *eventBus) dispatch() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventChannel:
			eb.deliver(event)
		case <-eb.stopCh:
			// Drain anything already queued before exiting.
			for {
				select {
				case event := <-eb.eventChannel:
					eb.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *eventBus) deliver(event Event) {
	eb.mu.RLock()
	subs := make([]*subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if len(sub.types) == 0 || sub.types[event.Type] {
			subs = append(subs, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panicked", "type", event.Type, "panic", r)
				}
			}()
			sub.handler(event)
		}()
	}
}
