// internal/app/store/todomessages/store.go
package todomessages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no message with the id exists for the recipient.
	ErrNotFound = errors.New("todo message not found")

	// ErrInvalidTransition is returned when a status change would move backwards.
	ErrInvalidTransition = errors.New("todo message status cannot move backwards")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New(`status must be "pending"|"read"|"in_progress"|"completed"`)

	// ErrConflict is returned when the status kept changing underneath an update.
	ErrConflict = errors.New("todo message status changed concurrently")

	errBadPriority = errors.New(`priority must be "low"|"medium"|"high"`)
	errNoRecipient = errors.New("todo message needs a recipient")
)

// DefaultLimit caps list queries that pass no limit.
const DefaultLimit = 100

// update attempts before giving up with ErrConflict
const maxUpdateAttempts = 3

// Store manages todo message records.
type Store struct {
	c *mongo.Collection
}

// New creates a new todo message Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("todo_messages")}
}

// Create inserts a new message. Status always starts at pending; empty
// priority and type default to medium and general.
func (s *Store) Create(ctx context.Context, m models.TodoMessage) (models.TodoMessage, error) {
	if m.RecipientID <= 0 {
		return models.TodoMessage{}, errNoRecipient
	}
	if m.Priority == "" {
		m.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(m.Priority) {
		return models.TodoMessage{}, errBadPriority
	}
	if m.Type == "" {
		m.Type = models.TodoTypeGeneral
	}

	m.ID = primitive.NewObjectID()
	m.Status = models.TodoPending
	m.CreatedAt = time.Now().UTC()
	m.ReadAt = nil
	m.CompletedAt = nil

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.TodoMessage{}, err
	}
	return m, nil
}

// GetForRecipient loads a message only if it is addressed to recipientID.
func (s *Store) GetForRecipient(ctx context.Context, id primitive.ObjectID, recipientID int64) (models.TodoMessage, error) {
	return s.findOne(ctx, bson.M{"_id": id, "recipient_id": recipientID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.TodoMessage, error) {
	var m models.TodoMessage
	if err := s.c.FindOne(ctx, filter).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.TodoMessage{}, ErrNotFound
		}
		return models.TodoMessage{}, err
	}
	return m, nil
}

// MarkRead records a read receipt. A pending message becomes read with
// ReadAt = at; a message already past pending is returned unchanged.
// The bool reports whether this call changed the record.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, recipientID int64, at time.Time) (models.TodoMessage, bool, error) {
	at = at.UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m models.TodoMessage
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "recipient_id": recipientID, "status": models.TodoPending},
		bson.M{"$set": bson.M{"status": models.TodoRead, "read_at": at}},
		opts,
	).Decode(&m)
	if err == nil {
		return m, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.TodoMessage{}, false, err
	}

	m, err = s.GetForRecipient(ctx, id, recipientID)
	if err != nil {
		return models.TodoMessage{}, false, err
	}
	return m, false, nil
}

// UpdateStatus advances a message to next and reports whether the status
// changed. Moving to the current status is a no-op; moving backwards returns
// ErrInvalidTransition. ReadAt is stamped
// if it was never set, CompletedAt when next is completed.
//
// The write is conditional on the status read just before it, so two
// concurrent updates can never move the record backwards.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, recipientID int64, next string, at time.Time) (models.TodoMessage, bool, error) {
	if !models.IsValidTodoStatus(next) {
		return models.TodoMessage{}, false, ErrInvalidStatus
	}
	at = at.UTC()

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, err := s.GetForRecipient(ctx, id, recipientID)
		if err != nil {
			return models.TodoMessage{}, false, err
		}
		if !models.CanAdvance(cur.Status, next) {
			return models.TodoMessage{}, false, fmt.Errorf("%s -> %s: %w", cur.Status, next, ErrInvalidTransition)
		}
		if cur.Status == next {
			return cur, false, nil
		}

		set := bson.M{"status": next}
		if cur.ReadAt == nil {
			set["read_at"] = at
		}
		if next == models.TodoCompleted {
			set["completed_at"] = at
		}

		var m models.TodoMessage
		err = s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "recipient_id": recipientID, "status": cur.Status},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&m)
		if err == nil {
			return m, true, nil
		}
		if err != mongo.ErrNoDocuments {
			return models.TodoMessage{}, false, err
		}
		// status moved between read and write; re-evaluate
	}
	return models.TodoMessage{}, false, ErrConflict
}

// ListByRecipient returns messages addressed to recipientID, newest first.
// An empty statuses slice matches every status.
func (s *Store) ListByRecipient(ctx context.Context, recipientID int64, statuses []string, limit int64) ([]models.TodoMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := bson.M{"recipient_id": recipientID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TodoMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountPending returns the number of pending messages for recipientID.
func (s *Store) CountPending(ctx context.Context, recipientID int64) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "status": models.TodoPending})
}
