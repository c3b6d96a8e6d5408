package types

import "time"

// EventType names a change notification published after a successful mutation.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventProjectCreated EventType = "project.created"
	EventProjectUpdated EventType = "project.updated"
	EventProjectDeleted EventType = "project.deleted"
	EventTaskCreated    EventType = "task.created"
	EventTaskUpdated    EventType = "task.updated"
	EventTaskDeleted    EventType = "task.deleted"
)

// Event is the broker payload describing a change to a user's workspace.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"userId"`
	EntityID   string    `json:"entityId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data,omitempty"`
}

// Export is the document written to object storage for a workspace export.
type Export struct {
	UserID     string            `json:"userId"`
	ExportedAt time.Time         `json:"exportedAt"`
	Projects   []ProjectResponse `json:"projects"`
	Tasks      []TaskResponse    `json:"tasks"`
}

// ExportResult describes a stored export.
type ExportResult struct {
	Key      string `json:"key"`
	Projects int    `json:"projects"`
	Tasks    int    `json:"tasks"`
}
