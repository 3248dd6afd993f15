package chatmessages_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/labflow/internal/app/store/chatmessages"
	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/dalemusser/labflow/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.Create(ctx, models.ChatMessage{FromID: 1, ToID: 42, Content: "hi", Read: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if m.Read {
		t.Error("new messages must start unread")
	}

	got, err := store.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FromID != 1 || got.ToID != 42 || got.Content != "hi" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestStore_Create_RejectsEmpty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.ChatMessage{FromID: 1, ToID: 2}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, chatmessages.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.Create(ctx, models.ChatMessage{FromID: 1, ToID: 2, Content: "ping"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// only the recipient can mark it read
	if _, err := store.MarkRead(ctx, m.ID, 1); !errors.Is(err, chatmessages.ErrNotFound) {
		t.Errorf("sender MarkRead: expected ErrNotFound, got %v", err)
	}

	changed, err := store.MarkRead(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if !changed {
		t.Error("first MarkRead should report a change")
	}

	changed, err = store.MarkRead(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}
	if changed {
		t.Error("second MarkRead should be a no-op")
	}
}

func TestStore_Conversation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, m := range []models.ChatMessage{
		{FromID: 1, ToID: 2, Content: "one"},
		{FromID: 2, ToID: 1, Content: "two"},
		{FromID: 1, ToID: 3, Content: "elsewhere"},
		{FromID: 1, ToID: 2, Content: "three"},
	} {
		if _, err := store.Create(ctx, m); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	msgs, err := store.Conversation(ctx, 2, 1, 0)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"one", "two", "three"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want[i])
		}
	}

	latest, err := store.Conversation(ctx, 1, 2, 2)
	if err != nil {
		t.Fatalf("Conversation with limit failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Content != "two" || latest[1].Content != "three" {
		t.Errorf("limit should keep the newest messages in order, got %+v", latest)
	}
}

func TestStore_ListUnread(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := chatmessages.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, _ := store.Create(ctx, models.ChatMessage{FromID: 1, ToID: 9, Content: "a"})
	if _, err := store.Create(ctx, models.ChatMessage{FromID: 1, ToID: 9, Content: "b"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.MarkRead(ctx, a.ID, 9); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	unread, err := store.ListUnread(ctx, 9, 10)
	if err != nil {
		t.Fatalf("ListUnread failed: %v", err)
	}
	if len(unread) != 1 || unread[0].Content != "b" {
		t.Errorf("expected only message b unread, got %+v", unread)
	}
}
