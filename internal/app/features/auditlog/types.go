// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/labflow/internal/app/store/audit"
)

// listItem is a single audit event row as returned to the client.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"eventType"`
	UserID        *int64            `json:"userId,omitempty"`
	UserName      string            `json:"userName,omitempty"`  // resolved from UserID
	ActorID       *int64            `json:"actorId,omitempty"`
	ActorName     string            `json:"actorName,omitempty"` // resolved from ActorID
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failureReason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// listResponse is the body of GET /api/admin/audit.
type listResponse struct {
	Items      []listItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Total      int64      `json:"total"`
}

// eventTypesByCategory lists the event types recorded per category.
var eventTypesByCategory = map[string][]string{
	audit.CategorySocket:   {audit.EventSocketConnected, audit.EventSocketRejected},
	audit.CategoryWorkflow: {audit.EventStepNotificationCreated},
}

// validFilter reports whether category and eventType name known values and
// agree with each other. Empty values match anything.
func validFilter(category, eventType string) bool {
	if category != "" {
		types, ok := eventTypesByCategory[category]
		if !ok {
			return false
		}
		if eventType == "" {
			return true
		}
		for _, t := range types {
			if t == eventType {
				return true
			}
		}
		return false
	}
	if eventType == "" {
		return true
	}
	for _, types := range eventTypesByCategory {
		for _, t := range types {
			if t == eventType {
				return true
			}
		}
	}
	return false
}

func toItem(e audit.Event, names map[int64]string) listItem {
	it := listItem{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		UserID:        e.UserID,
		ActorID:       e.ActorID,
		IP:            e.IP,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
	if e.UserID != nil {
		it.UserName = names[*e.UserID]
	}
	if e.ActorID != nil {
		it.ActorName = names[*e.ActorID]
	}
	return it
}
