// internal/domain/models/todomessage.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Priority values for a TodoMessage.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Status values for a TodoMessage, in the only order they may advance.
const (
	TodoPending    = "pending"
	TodoRead       = "read"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// Type values for a TodoMessage.
const (
	TodoTypeGeneral          = "general"
	TodoTypeStepNotification = "step_notification"
)

var statusRank = map[string]int{
	TodoPending:    0,
	TodoRead:       1,
	TodoInProgress: 2,
	TodoCompleted:  3,
}

// TodoMessage is a durable, actionable message from one user to another,
// optionally tied to a task step. It is the workflow notification record:
// live socket delivery is only a hint that one exists.
//
// Status only moves forward along pending -> read -> in_progress -> completed.
// ReadAt is stamped once, the first time Status leaves pending.
type TodoMessage struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	SenderID    int64              `bson:"sender_id" json:"senderId"`
	RecipientID int64              `bson:"recipient_id" json:"recipientId"`
	Subject     string             `bson:"subject" json:"subject"`
	Message     string             `bson:"message" json:"message"`
	Priority    string             `bson:"priority" json:"priority"`
	Status      string             `bson:"status" json:"status"`
	Type        string             `bson:"type" json:"type"`

	RelatedTaskID *int64     `bson:"related_task_id,omitempty" json:"relatedTaskId,omitempty"`
	RelatedStepID *int64     `bson:"related_step_id,omitempty" json:"relatedStepId,omitempty"`
	DueDate       *time.Time `bson:"due_date,omitempty" json:"dueDate,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	ReadAt      *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

// IsValidPriority reports whether p is one of the known priorities.
func IsValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// IsValidTodoStatus reports whether s is one of the known statuses.
func IsValidTodoStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvance reports whether a message in status from may move to status to.
// Staying in place is allowed; moving backwards is not.
func CanAdvance(from, to string) bool {
	f, ok1 := statusRank[from]
	t, ok2 := statusRank[to]
	if !ok1 || !ok2 {
		return false
	}
	return t >= f
}
