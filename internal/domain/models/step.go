// internal/domain/models/step.go
package models

import (
	"strconv"
	"time"
)

// Step is one ordered phase of a Task, assigned to a single operator.
//
// Order is unique per task in well-formed data. Readers that must cope with
// duplicates sort by (Order, ID).
type Step struct {
	ID          int64      `bson:"_id" json:"id"`
	TaskID      int64      `bson:"task_id" json:"taskId"`
	Name        string     `bson:"name" json:"name"`
	Order       int        `bson:"order" json:"order"`
	UserID      int64      `bson:"user_id" json:"userId"` // assigned operator
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// TaskNumber formats a task id the way the lab refers to it on paper.
func TaskNumber(id int64) string {
	return "task #" + strconv.FormatInt(id, 10)
}
