// internal/app/features/steps/handler.go
package steps

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	stepstore "github.com/dalemusser/labflow/internal/app/store/steps"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Store flips the completed flag of a step.
type Store interface {
	SetCompleted(ctx context.Context, id int64, completed bool, at time.Time) (models.Step, bool, error)
}

// Notifier runs the step-completion workflow. *stepnotify.Notifier implements it.
type Notifier interface {
	OnStepCompleted(ctx context.Context, completed models.Step, taskID int64) (bool, error)
}

// Handler completes and reopens workflow steps.
type Handler struct {
	Store    Store
	Notifier Notifier
	Log      *zap.Logger
}

// NewHandler creates a steps handler.
func NewHandler(store Store, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Notifier: notifier, Log: logger}
}

type completeResponse struct {
	Step     models.Step `json:"step"`
	Notified bool        `json:"notified"`
}

// ServeComplete handles POST /api/steps/{id}/complete.
//
// Completing an already-completed step succeeds without notifying anyone
// again. When the step changes state the next step's assignee is notified;
// if that notification cannot be saved the step is reopened and the request
// fails with 500, so a retry completes it and notifies again.
func (h *Handler) ServeComplete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

// ServeReopen handles POST /api/steps/{id}/reopen. It never notifies.
func (h *Handler) ServeReopen(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *Handler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	user, _ := auth.CurrentUser(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		jsonapi.Error(w, http.StatusBadRequest, "invalid step id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	step, changed, err := h.Store.SetCompleted(ctx, id, completed, time.Now())
	cancel()
	switch {
	case errors.Is(err, stepstore.ErrNotFound):
		jsonapi.Error(w, http.StatusNotFound, "step not found")
		return
	case err != nil:
		h.Log.Error("update step", zap.Int64("step_id", id), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to update step")
		return
	}

	h.Log.Info("step updated",
		zap.Int64("step_id", step.ID),
		zap.Int64("task_id", step.TaskID),
		zap.Bool("completed", completed),
		zap.Bool("changed", changed),
		zap.Int64("actor_id", user.UserID))

	resp := completeResponse{Step: step}
	if completed && changed {
		nctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
		notified, err := h.Notifier.OnStepCompleted(nctx, step, step.TaskID)
		cancel()
		if err != nil {
			h.Log.Error("step notification failed",
				zap.Int64("step_id", step.ID),
				zap.Int64("task_id", step.TaskID),
				zap.Error(err))
			h.rollback(r.Context(), step)
			jsonapi.Error(w, http.StatusInternalServerError, "failed to save step notification")
			return
		}
		resp.Notified = notified
	}
	jsonapi.Write(w, http.StatusOK, resp)
}

// rollback reopens a step whose completion could not be announced. It runs
// detached from the request so a cancelled client still gets the step back.
func (h *Handler) rollback(parent context.Context, step models.Step) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeouts.Short())
	defer cancel()
	if _, _, err := h.Store.SetCompleted(ctx, step.ID, false, time.Now()); err != nil {
		h.Log.Error("reopen step after failed notification",
			zap.Int64("step_id", step.ID),
			zap.Int64("task_id", step.TaskID),
			zap.Error(err))
	}
}
