// internal/app/system/stepnotify/notifier.go

// Package stepnotify turns a completed workflow step into a notification
// for whoever owns the next step of the same task.
//
// The notification record is written first and is the source of truth;
// live delivery is best effort and its failure is not an error.
package stepnotify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/tasks"
	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultDueAfter is how long the next operator has to act on a notification.
const DefaultDueAfter = 24 * time.Hour

// StepSource lists the steps of a task.
type StepSource interface {
	ListByTask(ctx context.Context, taskID int64) ([]models.Step, error)
}

// TaskSource loads a task for its display label.
type TaskSource interface {
	GetByID(ctx context.Context, id int64) (models.Task, error)
}

// TodoCreator persists notifications.
type TodoCreator interface {
	Create(ctx context.Context, m models.TodoMessage) (models.TodoMessage, error)
}

// Deliverer pushes a payload to a user's live connections.
type Deliverer interface {
	DeliverToUser(ctx context.Context, userID int64, payload any) bool
}

// Auditor records created notifications. *auditlog.Logger satisfies it.
type Auditor interface {
	StepNotificationCreated(ctx context.Context, senderID, recipientID, taskID, stepID int64, messageID string)
}

// Notifier implements the step-completion workflow.
type Notifier struct {
	Steps    StepSource
	Tasks    TaskSource
	Todos    TodoCreator
	Live     Deliverer
	Audit    Auditor // optional
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	DueAfter time.Duration

	now func() time.Time
}

func (n *Notifier) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}

// OnStepCompleted notifies the assignee of the step following completed
// in taskID. It returns true when a notification record was created.
//
// Nothing is created when completed is the last step or the next step has
// the same assignee. An error is returned only when the steps cannot be
// loaded or the notification cannot be saved; an offline recipient is not
// an error.
func (n *Notifier) OnStepCompleted(ctx context.Context, completed models.Step, taskID int64) (bool, error) {
	list, err := n.Steps.ListByTask(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("list steps of task %d: %w", taskID, err)
	}

	next, found := nextStep(list, completed.ID)
	if !found {
		n.Logger.Warn("completed step is not part of its task",
			zap.Int64("task_id", taskID),
			zap.Int64("step_id", completed.ID))
		n.Metrics.StepNotification(false)
		return false, nil
	}
	if next == nil || next.UserID == completed.UserID || next.UserID <= 0 {
		n.Metrics.StepNotification(false)
		return false, nil
	}

	label := n.taskLabel(ctx, taskID)
	now := n.clock().UTC()
	dueAfter := n.DueAfter
	if dueAfter <= 0 {
		dueAfter = DefaultDueAfter
	}
	due := now.Add(dueAfter)
	relTask, relStep := taskID, next.ID

	rec, err := n.Todos.Create(ctx, models.TodoMessage{
		SenderID:      completed.UserID,
		RecipientID:   next.UserID,
		Subject:       "Next step: " + next.Name,
		Message:       fmt.Sprintf("Step %q is complete for %s. Step %q is now ready for you.", completed.Name, label, next.Name),
		Priority:      models.PriorityHigh,
		Type:          models.TodoTypeStepNotification,
		RelatedTaskID: &relTask,
		RelatedStepID: &relStep,
		DueDate:       &due,
	})
	if err != nil {
		return false, fmt.Errorf("save step notification: %w", err)
	}
	n.Metrics.StepNotification(true)
	if n.Audit != nil {
		n.Audit.StepNotificationCreated(ctx, completed.UserID, next.UserID, taskID, next.ID, rec.ID.Hex())
	}

	delivered := n.Live.DeliverToUser(ctx, next.UserID, realtime.NewTodoEvent(realtime.TypeStepNotification, rec))
	n.Logger.Info("step notification created",
		zap.Int64("task_id", taskID),
		zap.Int64("completed_step_id", completed.ID),
		zap.Int64("next_step_id", next.ID),
		zap.Int64("recipient_id", next.UserID),
		zap.Bool("delivered_live", delivered))

	return true, nil
}

// nextStep orders steps by (Order, ID) and returns the element right after
// the step with id. found is false when id is not in the list; next is nil
// when it is last.
func nextStep(list []models.Step, id int64) (next *models.Step, found bool) {
	sorted := make([]models.Step, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})

	for i := range sorted {
		if sorted[i].ID != id {
			continue
		}
		if i+1 < len(sorted) {
			return &sorted[i+1], true
		}
		return nil, true
	}
	return nil, false
}

// taskLabel names the task in notification text; a missing task falls
// back to its number.
func (n *Notifier) taskLabel(ctx context.Context, taskID int64) string {
	if n.Tasks == nil {
		return models.TaskNumber(taskID)
	}
	t, err := n.Tasks.GetByID(ctx, taskID)
	if err != nil {
		if !errors.Is(err, tasks.ErrNotFound) {
			n.Logger.Warn("load task for notification", zap.Int64("task_id", taskID), zap.Error(err))
		}
		return models.TaskNumber(taskID)
	}
	return t.Label()
}
