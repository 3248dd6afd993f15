package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/labflow/internal/app/store/todomessages"
	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type dispatchFixture struct {
	fixture
	chats *memChats
	todos *memTodos
	d     *Dispatcher
}

func newDispatchFixture() dispatchFixture {
	fx := newFixture()
	chats := &memChats{}
	todos := newMemTodos()
	names := staticNames{1: "Anna", 42: "Marco"}
	return dispatchFixture{
		fixture: fx,
		chats:   chats,
		todos:   todos,
		d:       NewDispatcher(fx.router, chats, todos, names, zap.NewNop(), nil),
	}
}

func TestDispatcher_ChatRoundTrip(t *testing.T) {
	fx := newDispatchFixture()
	sender, senderTr := fx.connect(1)
	_, otherDeviceTr := fx.connect(1)
	_, recipientTr := fx.connect(42)

	fx.d.Handle(context.Background(), sender, []byte(`{"type":"chat","to":42,"content":"hi"}`))

	if len(fx.chats.msgs) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(fx.chats.msgs))
	}
	saved := fx.chats.msgs[0]
	if saved.FromID != 1 || saved.ToID != 42 || saved.Content != "hi" {
		t.Errorf("persisted %+v", saved)
	}

	chats := recipientTr.ofType(t, TypeChat)
	if len(chats) != 1 {
		t.Fatalf("recipient got %d chat frames, want 1", len(chats))
	}
	if chats[0]["content"] != "hi" || chats[0]["fromId"] != float64(1) || chats[0]["senderName"] != "Anna" {
		t.Errorf("unexpected chat frame %v", chats[0])
	}
	if chats[0]["id"] != saved.ID.Hex() {
		t.Errorf("chat frame id = %v, want %s", chats[0]["id"], saved.ID.Hex())
	}

	acks := senderTr.ofType(t, TypeSent)
	if len(acks) != 1 || acks[0]["messageId"] != saved.ID.Hex() {
		t.Errorf("origin acks = %v", acks)
	}
	if n := len(otherDeviceTr.ofType(t, TypeSent)); n != 0 {
		t.Errorf("sender's other device got %d acks, want 0", n)
	}
}

func TestDispatcher_ChatToOfflineUserStillPersists(t *testing.T) {
	fx := newDispatchFixture()
	sender, senderTr := fx.connect(1)

	fx.d.Handle(context.Background(), sender, []byte(`{"type":"chat","to":77,"content":"later"}`))

	if len(fx.chats.msgs) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(fx.chats.msgs))
	}
	if n := len(senderTr.ofType(t, TypeSent)); n != 1 {
		t.Errorf("acks = %d, want 1", n)
	}
}

func TestDispatcher_ChatContentIsSanitized(t *testing.T) {
	fx := newDispatchFixture()
	sender, _ := fx.connect(1)
	_, recipientTr := fx.connect(42)

	fx.d.Handle(context.Background(), sender, []byte(`{"type":"chat","to":42,"content":"<b>ready</b><script>x()</script>"}`))

	if fx.chats.msgs[0].Content != "ready" {
		t.Errorf("stored content = %q", fx.chats.msgs[0].Content)
	}
	if got := recipientTr.ofType(t, TypeChat)[0]["content"]; got != "ready" {
		t.Errorf("delivered content = %v", got)
	}
}

func TestDispatcher_ChatOnlyMarkupIsRejected(t *testing.T) {
	fx := newDispatchFixture()
	sender, senderTr := fx.connect(1)

	fx.d.Handle(context.Background(), sender, []byte(`{"type":"chat","to":42,"content":"<script>x()</script>"}`))

	if len(fx.chats.msgs) != 0 {
		t.Error("nothing should be persisted")
	}
	errs := senderTr.ofType(t, TypeError)
	if len(errs) != 1 || errs[0]["error"] != ErrTextInvalidFormat {
		t.Errorf("errors = %v", errs)
	}
}

func TestDispatcher_MalformedFrame(t *testing.T) {
	for _, raw := range []string{`{not json`, `"just a string"`, `{"type":"chat"}`} {
		fx := newDispatchFixture()
		origin, tr := fx.connect(1)

		fx.d.Handle(context.Background(), origin, []byte(raw))

		frames := tr.decoded(t)
		if len(frames) != 1 {
			t.Fatalf("%s: got %d frames, want exactly 1", raw, len(frames))
		}
		if frames[0]["type"] != TypeError || frames[0]["error"] != ErrTextInvalidFormat {
			t.Errorf("%s: frame = %v", raw, frames[0])
		}
		if !tr.IsOpen() || tr.closes != 0 {
			t.Errorf("%s: connection must stay open", raw)
		}
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	fx := newDispatchFixture()
	origin, tr := fx.connect(1)

	fx.d.Handle(context.Background(), origin, []byte(`{"type":"dance"}`))

	frames := tr.decoded(t)
	if len(frames) != 1 || frames[0]["error"] != ErrTextUnknownType {
		t.Errorf("frames = %v", frames)
	}
	if !tr.IsOpen() {
		t.Error("connection must stay open")
	}
}

func TestDispatcher_PersistenceFailure(t *testing.T) {
	fx := newDispatchFixture()
	fx.chats.err = errors.New("mongo down")
	sender, senderTr := fx.connect(1)
	_, recipientTr := fx.connect(42)

	fx.d.Handle(context.Background(), sender, []byte(`{"type":"chat","to":42,"content":"hi"}`))

	if n := len(recipientTr.ofType(t, TypeChat)); n != 0 {
		t.Errorf("recipient got %d chat frames; nothing may be delivered without a record", n)
	}
	if n := len(senderTr.ofType(t, TypeSent)); n != 0 {
		t.Error("failed message must not be acknowledged")
	}
	errs := senderTr.ofType(t, TypeError)
	if len(errs) != 1 || errs[0]["error"] != ErrTextSaveFailed {
		t.Errorf("errors = %v", errs)
	}
}

func TestDispatcher_TodoMessage(t *testing.T) {
	fx := newDispatchFixture()
	sender, senderTr := fx.connect(1)
	_, recipientTr := fx.connect(42)

	fx.d.Handle(context.Background(), sender, []byte(
		`{"type":"todoMessage","recipientId":42,"subject":"Check margins","message":"Crown 12","priority":"high","dueDate":"2026-11-01"}`))

	all := fx.todos.all()
	if len(all) != 1 {
		t.Fatalf("persisted %d todo messages, want 1", len(all))
	}
	m := all[0]
	if m.SenderID != 1 || m.RecipientID != 42 || m.Priority != models.PriorityHigh || m.Type != models.TodoTypeGeneral {
		t.Errorf("persisted %+v", m)
	}
	if m.DueDate == nil {
		t.Error("due date lost")
	}

	evs := recipientTr.ofType(t, TypeNewTodoMessage)
	if len(evs) != 1 || evs[0]["id"] != m.ID.Hex() || evs[0]["subject"] != "Check margins" {
		t.Errorf("newTodoMessage frames = %v", evs)
	}
	if n := len(senderTr.ofType(t, TypeSent)); n != 1 {
		t.Errorf("acks = %d, want 1", n)
	}
}

func TestDispatcher_MarkTodoMessageRead(t *testing.T) {
	fx := newDispatchFixture()
	m, _ := fx.todos.Create(context.Background(), models.TodoMessage{SenderID: 1, RecipientID: 42, Subject: "s", Message: "m"})

	reader, readerTr := fx.connect(42)
	_, otherTabTr := fx.connect(42)
	_, senderTr := fx.connect(1)

	fx.d.Handle(context.Background(), reader, []byte(`{"type":"markTodoMessageRead","messageId":"`+m.ID.Hex()+`"}`))

	stored := fx.todos.msgs[m.ID]
	if stored.Status != models.TodoRead || stored.ReadAt == nil {
		t.Errorf("stored = %+v", stored)
	}
	for name, tr := range map[string]*fakeTransport{"reader": readerTr, "other tab": otherTabTr} {
		evs := tr.ofType(t, TypeTodoMessageRead)
		if len(evs) != 1 || evs[0]["messageId"] != m.ID.Hex() || evs[0]["readAt"] == nil {
			t.Errorf("%s: todoMessageRead frames = %v", name, evs)
		}
	}
	if senderTr.count() != 0 {
		t.Error("the sender's connections are not part of the echo")
	}
}

func TestDispatcher_MarkTodoMessageRead_NotFound(t *testing.T) {
	fx := newDispatchFixture()
	m, _ := fx.todos.Create(context.Background(), models.TodoMessage{SenderID: 1, RecipientID: 42, Subject: "s", Message: "m"})
	stranger, tr := fx.connect(5)

	for _, id := range []primitive.ObjectID{m.ID, primitive.NewObjectID()} {
		fx.d.Handle(context.Background(), stranger, []byte(`{"type":"markTodoMessageRead","messageId":"`+id.Hex()+`"}`))
	}

	errs := tr.ofType(t, TypeError)
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	for _, e := range errs {
		if e["error"] != ErrTextMessageMissing {
			t.Errorf("error = %v", e)
		}
	}
	if fx.todos.msgs[m.ID].Status != models.TodoPending {
		t.Error("another user's message must not change")
	}
}

func TestDispatcher_AdvanceTodo_NotifiesSenderOnCompletion(t *testing.T) {
	fx := newDispatchFixture()
	ctx := context.Background()
	m, _ := fx.todos.Create(ctx, models.TodoMessage{SenderID: 1, RecipientID: 42, Subject: "Mill crown", Message: "m"})
	_, senderTr := fx.connect(1)

	if _, err := fx.d.AdvanceTodo(ctx, 42, m.ID, models.TodoInProgress); err != nil {
		t.Fatalf("AdvanceTodo(in_progress) failed: %v", err)
	}
	if senderTr.count() != 0 {
		t.Error("only completion notifies the sender")
	}

	got, err := fx.d.AdvanceTodo(ctx, 42, m.ID, models.TodoCompleted)
	if err != nil {
		t.Fatalf("AdvanceTodo(completed) failed: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	evs := senderTr.ofType(t, TypeNotification)
	if len(evs) != 1 {
		t.Fatalf("sender notifications = %v", evs)
	}
	if evs[0]["title"] != "Completed: Mill crown" || evs[0]["body"] != "Marco marked your message as completed." {
		t.Errorf("notification = %v", evs[0])
	}

	if _, err := fx.d.AdvanceTodo(ctx, 42, m.ID, models.TodoCompleted); err != nil {
		t.Fatalf("repeated completion failed: %v", err)
	}
	if n := len(senderTr.ofType(t, TypeNotification)); n != 1 {
		t.Errorf("repeated completion notified the sender again (%d frames)", n)
	}

	if _, err := fx.d.AdvanceTodo(ctx, 42, m.ID, models.TodoRead); !errors.Is(err, todomessages.ErrInvalidTransition) {
		t.Errorf("backwards move: expected ErrInvalidTransition, got %v", err)
	}
}
