package core

import (
	"context"
	"time"
)

// Event kinds
const (
	EventAssignmentSubmitted   = "assignment.submitted"
	EventAssignmentGraded      = "assignment.graded"
	EventAssignmentDeleted     = "assignment.deleted"
	EventNotificationBroadcast = "notification.broadcast"
)

// Event is a domain fact published after the transaction that produced it committed.
type Event struct {
	Kind       string                 `json:"kind"`
	ActorID    int64                  `json:"actor_id"`
	SubjectID  int64                  `json:"subject_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// EventPublisher delivers events to interested parties outside of the portal.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}
