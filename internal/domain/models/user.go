// internal/domain/models/user.go
package models

import "time"

// User is a lab operator or administrator.
//
// NOTE:
//   - Users are owned by the CRUD side of the application and keyed by the
//     numeric id the login service puts in the token subject.
//   - The realtime core only reads users (display names for chat frames).
type User struct {
	ID     int64  `bson:"_id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email,omitempty" json:"email,omitempty"`
	Role   string `bson:"role" json:"role"` // admin | operator
	Status string `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
