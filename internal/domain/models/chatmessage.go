// internal/domain/models/chatmessage.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is a persisted point-to-point chat message.
// Read flips once, on the recipient's explicit mark-as-read; the record is
// otherwise immutable.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	FromID    int64              `bson:"from_id" json:"fromId"`
	ToID      int64              `bson:"to_id" json:"toId"`
	Content   string             `bson:"content" json:"content"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
