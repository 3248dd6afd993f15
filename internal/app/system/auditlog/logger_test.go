package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/labflow/internal/app/store/audit"
	"github.com/dalemusser/labflow/internal/app/system/auditlog"
	"github.com/dalemusser/labflow/internal/testutil"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/ws", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.SocketConnected(ctx, req, 1, "1-abc-1", "")
	logger.SocketRejected(ctx, req, "missing_token")
	logger.StepNotificationCreated(ctx, 1, 2, 3, 4, "id")
}

func TestLogger_LogOnlyWithoutStore(t *testing.T) {
	logger := auditlog.New(nil, zap.NewNop(), auditlog.Config{Socket: auditlog.All})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// a nil store with a db destination must not panic
	logger.SocketRejected(ctx, httptest.NewRequest("GET", "/ws", nil), "invalid_token")
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Socket:   auditlog.Off,
		Workflow: auditlog.Off,
	})

	logger.SocketConnected(ctx, httptest.NewRequest("GET", "/ws", nil), 7, "7-a-1", "")
	logger.StepNotificationCreated(ctx, 1, 7, 3, 4, "m")

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events when config is 'off', got %d", len(events))
	}
}

func TestLogger_Log_ConfigLogOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Socket: auditlog.Log})
	logger.SocketRejected(ctx, httptest.NewRequest("GET", "/ws", nil), "invalid_token")

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("'log' must not write to the database, got %d events", len(events))
	}
}

func TestLogger_SocketConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Socket: auditlog.DB})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	req.Header.Set("User-Agent", "LabTablet/2.0")
	logger.SocketConnected(ctx, req, 7, "7-dev-1", "dev")

	events, err := store.GetByUser(ctx, 7, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.EventType != audit.EventSocketConnected || !e.Success {
		t.Errorf("unexpected event %+v", e)
	}
	if e.IP != "10.0.0.5" {
		t.Errorf("IP = %q, want 10.0.0.5", e.IP)
	}
	if e.Details["conn_id"] != "7-dev-1" || e.Details["device_id"] != "dev" {
		t.Errorf("unexpected details %v", e.Details)
	}
}

func TestLogger_StepNotificationCreated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Workflow: auditlog.All})
	logger.StepNotificationCreated(ctx, 1, 2, 30, 40, "abc")

	events, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryWorkflow})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.UserID == nil || *e.UserID != 2 || e.ActorID == nil || *e.ActorID != 1 {
		t.Errorf("unexpected who fields: user=%v actor=%v", e.UserID, e.ActorID)
	}
	if e.Details["task_id"] != "30" || e.Details["step_id"] != "40" {
		t.Errorf("unexpected details %v", e.Details)
	}
}
