// internal/app/store/steps/store.go
package steps

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a step does not exist.
var ErrNotFound = errors.New("step not found")

// Store reads and toggles task steps. Steps themselves are created by the
// CRUD side of the application.
type Store struct {
	c *mongo.Collection
}

// New creates a new step Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("steps")}
}

// GetByID loads a step by id.
func (s *Store) GetByID(ctx context.Context, id int64) (models.Step, error) {
	var st models.Step
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Step{}, ErrNotFound
		}
		return models.Step{}, err
	}
	return st, nil
}

// ListByTask returns the steps of a task sorted by order, ties broken by id.
func (s *Store) ListByTask(ctx context.Context, taskID int64) ([]models.Step, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"task_id": taskID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Step
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetCompleted sets the completed flag of a step. It returns the step as
// stored afterwards and whether the flag actually changed, so callers can
// react only to real transitions.
func (s *Store) SetCompleted(ctx context.Context, id int64, completed bool, at time.Time) (models.Step, bool, error) {
	set := bson.M{"completed": completed, "updated_at": at.UTC()}
	update := bson.M{"$set": set}
	if completed {
		set["completed_at"] = at.UTC()
	} else {
		update["$unset"] = bson.M{"completed_at": ""}
	}

	var st models.Step
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "completed": !completed},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&st)
	if err == nil {
		return st, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Step{}, false, err
	}

	// already in the requested state, or missing
	st, err = s.GetByID(ctx, id)
	if err != nil {
		return models.Step{}, false, err
	}
	return st, false, nil
}
