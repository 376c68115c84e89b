package models

import "time"

// RecurrenceType enumerates supported recurrence steps.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "DAILY"
	RecurrenceWeekly  RecurrenceType = "WEEKLY"
	RecurrenceMonthly RecurrenceType = "MONTHLY"
)

// Activity is a single scheduled point-earning event instance. Recurring
// requests produce independent rows tagged with IsRecurring/RecurrenceType;
// there is no persisted series entity.
type Activity struct {
	ID              string          `db:"id" json:"id"`
	OrganizationID  string          `db:"organization_id" json:"organization_id"`
	ProgramID       string          `db:"program_id" json:"program_id"`
	Title           string          `db:"title" json:"title"`
	Description     *string         `db:"description" json:"description,omitempty"`
	ActivityDate    time.Time       `db:"activity_date" json:"activity_date"`
	StartTime       time.Time       `db:"start_time" json:"start_time"`
	EndTime         *time.Time      `db:"end_time" json:"end_time,omitempty"`
	Points          int             `db:"points" json:"points"`
	MaxParticipants *int            `db:"max_participants" json:"max_participants,omitempty"`
	IsRecurring     bool            `db:"is_recurring" json:"is_recurring"`
	RecurrenceType  *RecurrenceType `db:"recurrence_type" json:"recurrence_type,omitempty"`
	Active          bool            `db:"active" json:"active"`
	CreatedByID     string          `db:"created_by_id" json:"created_by_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ActivityDetail is an activity with program context and participation count.
type ActivityDetail struct {
	Activity
	ProgramName      string `db:"program_name" json:"program_name"`
	ParticipantCount int    `db:"participant_count" json:"participant_count"`
}

// ActivityFilter encapsulates list query parameters.
type ActivityFilter struct {
	ProgramID string
	Active    *bool
	Page      int
	PageSize  int
}

// ActivitySeries groups recurring activity rows back together at read time.
// The grouping key is (title, program id, points, recurrence type).
type ActivitySeries struct {
	Title          string           `json:"title"`
	ProgramID      string           `json:"program_id"`
	Points         int              `json:"points"`
	RecurrenceType RecurrenceType   `json:"recurrence_type"`
	Occurrences    []ActivityDetail `json:"occurrences"`
}
