package domain

import "time"

// AuditLog records a committed transition.
type AuditLog struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     map[string]any
	After      map[string]any
	CreatedAt  time.Time
}
