package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types for audit entries.
const (
	ActorUser      = "user"
	ActorSystem    = "system"
	ActorScheduler = "scheduler"
)

type AuditLog struct {
	ID            uuid.UUID  `json:"id"`
	ActorIdentity *string    `json:"actor_identity,omitempty"`
	ActorType     string     `json:"actor_type"`
	Action        string     `json:"action"`
	EntityType    string     `json:"entity_type"` // gift/escrow/swap/credit
	EntityID      *uuid.UUID `json:"entity_id,omitempty"`
	Meta          any        `json:"meta,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
