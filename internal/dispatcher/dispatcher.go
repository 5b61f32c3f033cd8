// Package dispatcher delivers pipeline notifications to webhooks asynchronously.
package dispatcher

import (
	"context"
	"errors"

	"assetgraph/pkg/cloudevent"
)

// ErrBufferFull is returned when the dispatcher's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher handles async delivery of events.
type Dispatcher interface {
	// Dispatch queues an event for async delivery. Non-blocking.
	// Returns ErrBufferFull if the event cannot be queued.
	Dispatch(event *Event) error

	// Stats returns current dispatcher statistics.
	Stats() Stats

	// Close gracefully shuts down, attempting to deliver queued events.
	// The context deadline controls how long to wait for drain.
	Close(ctx context.Context) error
}

// Event is an event to be delivered to a destination.
type Event struct {
	Payload     *cloudevent.Event
	Destination string // webhook URL
	Requeues    int    // times requeued because the destination's breaker was open
}

// Stats holds dispatcher statistics.
type Stats struct {
	QueueDepth   int   `json:"queue_depth"`
	Queued       int64 `json:"queued"`
	Delivered    int64 `json:"delivered"`
	Failed       int64 `json:"failed"`  // failed after retries
	Dropped      int64 `json:"dropped"` // full buffer or max requeues
	Requeued     int64 `json:"requeued"`
	RetriesTotal int64 `json:"retries_total"`
	BreakersOpen int   `json:"breakers_open"`
}
