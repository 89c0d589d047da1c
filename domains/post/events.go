package post

import "time"

// StatusEvent describes one status transition, emitted for dashboards.
type StatusEvent struct {
	PostID    string     `json:"post_id"`
	Previous  PostStatus `json:"previous_status"`
	New       PostStatus `json:"new_status"`
	Timestamp time.Time  `json:"timestamp"`
}

// IEventEmitter pushes status-change events to external listeners.
// Emitting is fire-and-forget; a slow or absent listener must never block
// the scheduler.
type IEventEmitter interface {
	EmitStatusChange(event StatusEvent)
}

type NopEmitter struct{}

func (NopEmitter) EmitStatusChange(StatusEvent) {}
