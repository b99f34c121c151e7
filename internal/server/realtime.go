package server

import (
	"context"
	"sync"

	"github.com/sigillo-app/backend/internal/messaging"
)

const (
	// RealtimeEventMessage is the SSE event type for new conversation messages.
	RealtimeEventMessage = "message"

	realtimeEventHeartbeat = "heartbeat"
)

// RealtimeDispatcher fans message events out to the open conversation streams
// of one submission. One channel per subscriber, drop-on-full so a stalled
// stream never blocks the sender.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan messaging.Event
}

// NewRealtimeDispatcher constructs an in-process dispatcher.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for one submission's conversation. The stream
// is torn down when the context ends or the cleanup function runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, submissionID string) (<-chan messaging.Event, func()) {
	if submissionID == "" {
		ch := make(chan messaging.Event)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan messaging.Event, d.bufferSize),
	}
	d.registerSubscriber(submissionID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(submissionID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// PublishMessage delivers one message event to every open stream of its
// submission. Implements messaging.Publisher.
func (d *RealtimeDispatcher) PublishMessage(event messaging.Event) {
	if event.SubmissionID == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.SubmissionID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(submissionID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[submissionID]; !ok {
		d.subscribers[submissionID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[submissionID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(submissionID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[submissionID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, submissionID)
		}
	}
	d.mu.Unlock()
}
