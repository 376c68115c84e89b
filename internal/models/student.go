package models

import "time"

// Student is a person enrolled in a program. TotalPoints is the denormalized
// balance cache; it is written only by the participation and adjustment
// repositories, inside the same transaction as the ledger row.
type Student struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	ProgramID      string    `db:"program_id" json:"program_id"`
	StudentNumber  string    `db:"student_number" json:"student_number"`
	Name           string    `db:"name" json:"name"`
	Class          string    `db:"class" json:"class"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url,omitempty"`
	TotalPoints    int       `db:"total_points" json:"total_points"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with program context.
type StudentDetail struct {
	Student
	ProgramName string `db:"program_name" json:"program_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ProgramID string
	Class     string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
