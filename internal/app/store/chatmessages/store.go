// internal/app/store/chatmessages/store.go
package chatmessages

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a chat message does not exist.
var ErrNotFound = errors.New("chat message not found")

var errEmptyContent = errors.New("chat message content is empty")

// DefaultLimit caps list queries that pass no limit.
const DefaultLimit = 100

// Store manages chat message records.
type Store struct {
	c *mongo.Collection
}

// New creates a new chat message Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("chat_messages")}
}

// Create inserts a new, unread message and returns it with ID and CreatedAt set.
func (s *Store) Create(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if m.Content == "" {
		return models.ChatMessage{}, errEmptyContent
	}
	m.ID = primitive.NewObjectID()
	m.Read = false
	m.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.ChatMessage{}, err
	}
	return m, nil
}

// GetByID loads a message by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ChatMessage, error) {
	var m models.ChatMessage
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ChatMessage{}, ErrNotFound
		}
		return models.ChatMessage{}, err
	}
	return m, nil
}

// MarkRead flips the read flag for a message addressed to readerID.
// It reports whether the flag changed; a message already read returns false.
// ErrNotFound is returned when no message with that id was sent to readerID.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, readerID int64) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "to_id": readerID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

// Conversation returns the most recent messages exchanged between a and b,
// oldest first.
func (s *Store) Conversation(ctx context.Context, a, b int64, limit int64) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := bson.M{"$or": []bson.M{
		{"from_id": a, "to_id": b},
		{"from_id": b, "to_id": a},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	// newest-first from the query; flip for display order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListUnread returns unread messages addressed to userID, oldest first.
func (s *Store) ListUnread(ctx context.Context, userID int64, limit int64) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"to_id": userID, "read": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
