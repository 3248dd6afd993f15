package todomessages_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/labflow/internal/app/features/todomessages"
	todostore "github.com/dalemusser/labflow/internal/app/store/todomessages"
	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/dalemusser/labflow/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeInbox struct {
	msgs      []models.TodoMessage
	err       error
	gotLimit  int64
	gotStatus []string
	readCalls int
}

func (f *fakeInbox) ListByRecipient(_ context.Context, recipientID int64, statuses []string, limit int64) ([]models.TodoMessage, error) {
	f.gotLimit, f.gotStatus = limit, statuses
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TodoMessage
	for _, m := range f.msgs {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeInbox) CountPending(_ context.Context, recipientID int64) (int64, error) {
	var n int64
	for _, m := range f.msgs {
		if m.RecipientID == recipientID && m.Status == models.TodoPending {
			n++
		}
	}
	return n, f.err
}

func (f *fakeInbox) find(id primitive.ObjectID, userID int64) (int, error) {
	for i, m := range f.msgs {
		if m.ID == id && m.RecipientID == userID {
			return i, nil
		}
	}
	return -1, todostore.ErrNotFound
}

func (f *fakeInbox) MarkTodoRead(_ context.Context, userID int64, id primitive.ObjectID) (models.TodoMessage, error) {
	f.readCalls++
	i, err := f.find(id, userID)
	if err != nil {
		return models.TodoMessage{}, err
	}
	if f.msgs[i].Status == models.TodoPending {
		now := time.Now().UTC()
		f.msgs[i].Status = models.TodoRead
		f.msgs[i].ReadAt = &now
	}
	return f.msgs[i], nil
}

func (f *fakeInbox) AdvanceTodo(_ context.Context, userID int64, id primitive.ObjectID, next string) (models.TodoMessage, error) {
	i, err := f.find(id, userID)
	if err != nil {
		return models.TodoMessage{}, err
	}
	if !models.CanAdvance(f.msgs[i].Status, next) {
		return models.TodoMessage{}, fmt.Errorf("%s -> %s: %w", f.msgs[i].Status, next, todostore.ErrInvalidTransition)
	}
	f.msgs[i].Status = next
	return f.msgs[i], nil
}

func newInbox(recipient int64, statuses ...string) *fakeInbox {
	f := &fakeInbox{}
	for _, s := range statuses {
		f.msgs = append(f.msgs, models.TodoMessage{
			ID:          primitive.NewObjectID(),
			SenderID:    99,
			RecipientID: recipient,
			Subject:     "Next step: Glazing",
			Status:      s,
			Priority:    models.PriorityHigh,
			Type:        models.TodoTypeStepNotification,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return f
}

func serve(f *fakeInbox, req *http.Request) *testutil.ResponseRecorder {
	h := todomessages.NewHandler(f, f, zap.NewNop())
	rec := testutil.NewRecorder()
	todomessages.Routes(h).ServeHTTP(rec, req)
	return rec
}

func TestServeList(t *testing.T) {
	f := newInbox(5, models.TodoPending, models.TodoRead)
	f.msgs = append(f.msgs, models.TodoMessage{ID: primitive.NewObjectID(), RecipientID: 6, Status: models.TodoPending})

	rec := serve(f, testutil.NewAuthenticatedRequest("GET", "/?status=pending,read&limit=10", "", 5))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Messages []models.TodoMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if len(body.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(body.Messages))
	}
	if f.gotLimit != 10 {
		t.Errorf("limit = %d, want 10", f.gotLimit)
	}
	if len(f.gotStatus) != 2 || f.gotStatus[0] != "pending" || f.gotStatus[1] != "read" {
		t.Errorf("statuses = %v", f.gotStatus)
	}
}

func TestServeList_EmptyIsArray(t *testing.T) {
	rec := serve(newInbox(5), testutil.NewAuthenticatedRequest("GET", "/", "", 5))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"messages":[]`)
}

func TestServeList_UnknownStatus(t *testing.T) {
	rec := serve(newInbox(5), testutil.NewAuthenticatedRequest("GET", "/?status=archived", "", 5))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeList_StoreFailure(t *testing.T) {
	f := newInbox(5)
	f.err = errors.New("connection reset")
	rec := serve(f, testutil.NewAuthenticatedRequest("GET", "/", "", 5))
	rec.AssertStatus(t, http.StatusInternalServerError)
}

func TestServePendingCount(t *testing.T) {
	f := newInbox(5, models.TodoPending, models.TodoPending, models.TodoCompleted)
	rec := serve(f, testutil.NewAuthenticatedRequest("GET", "/pending-count", "", 5))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"count":2`)
}

func TestServeMarkRead(t *testing.T) {
	f := newInbox(5, models.TodoPending)
	id := f.msgs[0].ID.Hex()

	rec := serve(f, testutil.NewAuthenticatedRequest("POST", "/"+id+"/read", "", 5))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"status":"read"`)

	// Someone else's message looks like a missing one.
	rec = serve(f, testutil.NewAuthenticatedRequest("POST", "/"+id+"/read", "", 6))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = serve(f, testutil.NewAuthenticatedRequest("POST", "/not-an-id/read", "", 5))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeStatus(t *testing.T) {
	f := newInbox(5, models.TodoRead)
	id := f.msgs[0].ID.Hex()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"forward", `{"status":"in_progress"}`, http.StatusOK},
		{"same status is a no-op", `{"status":"in_progress"}`, http.StatusOK},
		{"backwards", `{"status":"read"}`, http.StatusConflict},
		{"pending is never a target", `{"status":"pending"}`, http.StatusBadRequest},
		{"unknown status", `{"status":"archived"}`, http.StatusBadRequest},
		{"bad body", `status=completed`, http.StatusBadRequest},
		{"complete", `{"status":"completed"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(f, testutil.NewAuthenticatedRequest("POST", "/"+id+"/status", tt.body, 5))
			rec.AssertStatus(t, tt.want)
		})
	}
	if f.msgs[0].Status != models.TodoCompleted {
		t.Errorf("final status = %q, want completed", f.msgs[0].Status)
	}
}
