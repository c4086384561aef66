package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
)

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is one job-scoped notification from the state machine. Progress
// events carry (Current, Total, Percent); terminal events carry the final
// status and, on failure, the job's error message.
type Event struct {
	JobID   uuid.UUID           `json:"job_id"`
	Type    EventType           `json:"type"`
	Stage   string              `json:"stage"`
	Current int                 `json:"current,omitempty"`
	Total   int                 `json:"total,omitempty"`
	Percent float64             `json:"percent,omitempty"`
	Status  constants.JobStatus `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
	At      time.Time           `json:"at"`
}

// Sink receives events from the state machine. Publish must never block:
// delivery guarantees belong to the consumer, not to the pipeline.
type Sink interface {
	Publish(Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// ChannelSink buffers events on a bounded channel for a single consumer.
// When the buffer is full the oldest event is dropped: a slow consumer
// loses history, never stalls the pipeline.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch: // drop oldest
		default:
		}
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// progressEmitter serializes progress events for one stage run so that
// Current is non-decreasing even when document work completes out of order.
type progressEmitter struct {
	mu    sync.Mutex
	sink  Sink
	jobID uuid.UUID
	stage string
	done  int
	total int
}

func newProgressEmitter(sink Sink, jobID uuid.UUID, stage string, total int) *progressEmitter {
	return &progressEmitter{sink: sink, jobID: jobID, stage: stage, total: total}
}

func (p *progressEmitter) step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	// Published under the mutex: Publish never blocks, and ordering is the
	// point here.
	p.sink.Publish(Event{
		JobID:   p.jobID,
		Type:    EventProgress,
		Stage:   p.stage,
		Current: p.done,
		Total:   p.total,
		Percent: float64(p.done) / float64(p.total) * 100,
		At:      time.Now().UTC(),
	})
}
