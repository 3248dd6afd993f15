// internal/domain/models/task.go
package models

import "time"

// Task is a per-patient job instance of a work type (a crown, an aligner
// series, ...). Its workflow is the ordered list of Steps sharing its id.
type Task struct {
	ID          int64  `bson:"_id" json:"id"`
	PatientName string `bson:"patient_name" json:"patientName"`
	WorkName    string `bson:"work_name,omitempty" json:"workName,omitempty"`
	ProviderID  *int64 `bson:"provider_id,omitempty" json:"providerId,omitempty"`

	DeliveryDate *time.Time `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Label returns the human identifier used in notification text.
// Falls back to the task number when no patient name was recorded.
func (t Task) Label() string {
	if t.PatientName != "" {
		return t.PatientName
	}
	return TaskNumber(t.ID)
}
