// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

var nextID atomic.Int64

// NextID returns a process-unique positive id for fixtures keyed by int64.
func NextID() int64 {
	return nextID.Add(1)
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an operator with the given name.
func (f *Fixtures) CreateUser(ctx context.Context, name string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:        NextID(),
		Name:      name,
		Role:      "operator",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTask inserts a task for the given patient.
func (f *Fixtures) CreateTask(ctx context.Context, patient string) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:          NextID(),
		PatientName: patient,
		WorkName:    "Crown",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("tasks").InsertOne(ctx, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

// CreateStep inserts a step of taskID at the given order, assigned to userID.
func (f *Fixtures) CreateStep(ctx context.Context, taskID int64, name string, order int, userID int64) models.Step {
	f.t.Helper()

	now := time.Now().UTC()
	step := models.Step{
		ID:        NextID(),
		TaskID:    taskID,
		Name:      name,
		Order:     order,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("steps").InsertOne(ctx, step); err != nil {
		f.t.Fatalf("failed to create test step: %v", err)
	}
	return step
}
