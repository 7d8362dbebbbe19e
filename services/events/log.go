package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/studentportal/core"
)

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt core.Event) error {
	p.logger.Debug("event", map[string]interface{}{
		"kind":       evt.Kind,
		"actor_id":   evt.ActorID,
		"subject_id": evt.SubjectID,
		"data":       evt.Data,
	})
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, in publishing order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
