package steps_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/steps"
	"github.com/dalemusser/labflow/internal/testutil"
)

func TestStore_ListByTask_Ordered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := steps.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	task := fx.CreateTask(ctx, "Rossi")
	other := fx.CreateTask(ctx, "Bianchi")
	fx.CreateStep(ctx, task.ID, "Finishing", 3, 1)
	fx.CreateStep(ctx, task.ID, "Scan", 1, 1)
	fx.CreateStep(ctx, task.ID, "Milling", 2, 2)
	fx.CreateStep(ctx, other.ID, "Scan", 1, 3)

	got, err := store.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListByTask failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got))
	}
	for i, want := range []string{"Scan", "Milling", "Finishing"} {
		if got[i].Name != want {
			t.Errorf("steps[%d] = %q, want %q", i, got[i].Name, want)
		}
	}
}

func TestStore_ListByTask_DuplicateOrderByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := steps.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	task := fx.CreateTask(ctx, "Rossi")
	a := fx.CreateStep(ctx, task.ID, "A", 1, 1)
	b := fx.CreateStep(ctx, task.ID, "B", 1, 2)

	got, err := store.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListByTask failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("expected ties broken by id, got %+v", got)
	}
}

func TestStore_SetCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := steps.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	task := fx.CreateTask(ctx, "Rossi")
	st := fx.CreateStep(ctx, task.ID, "Scan", 1, 1)
	at := time.Now().UTC().Truncate(time.Millisecond)

	got, changed, err := store.SetCompleted(ctx, st.ID, true, at)
	if err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	if !changed || !got.Completed {
		t.Errorf("expected completed transition, got changed=%v completed=%v", changed, got.Completed)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, at)
	}

	_, changed, err = store.SetCompleted(ctx, st.ID, true, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("repeat SetCompleted failed: %v", err)
	}
	if changed {
		t.Error("completing an already completed step must not report a change")
	}

	got, changed, err = store.SetCompleted(ctx, st.ID, false, at)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !changed || got.Completed || got.CompletedAt != nil {
		t.Errorf("expected reopened step, got %+v changed=%v", got, changed)
	}
}

func TestStore_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := steps.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, 424242); !errors.Is(err, steps.ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.SetCompleted(ctx, 424242, true, time.Now()); !errors.Is(err, steps.ErrNotFound) {
		t.Errorf("SetCompleted: expected ErrNotFound, got %v", err)
	}
}
