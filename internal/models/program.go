package models

import "time"

// Program is a bounded academic period owning students and activities.
type Program struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description,omitempty"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	Active         bool      `db:"active" json:"active"`
	CreatedByID    string    `db:"created_by_id" json:"created_by_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramDetail carries ownership counts used by the delete guard and list views.
type ProgramDetail struct {
	Program
	StudentCount  int `db:"student_count" json:"student_count"`
	ActivityCount int `db:"activity_count" json:"activity_count"`
}
