package models

import "time"

// Participation is the ledger entry: one row per (student, activity) pair,
// unique on that pair. PointsEarned is stored independently of the activity's
// point value so late penalties and overrides survive activity edits.
type Participation struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ActivityID     string    `db:"activity_id" json:"activity_id"`
	ParticipatedAt time.Time `db:"participated_at" json:"participated_at"`
	PointsEarned   int       `db:"points_earned" json:"points_earned"`
	IsLate         bool      `db:"is_late" json:"is_late"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	RecordedByID   string    `db:"recorded_by_id" json:"recorded_by_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ParticipationDetail joins student, activity and recorder context.
type ParticipationDetail struct {
	Participation
	StudentName    string    `db:"student_name" json:"student_name"`
	StudentNumber  string    `db:"student_number" json:"student_number"`
	StudentClass   string    `db:"student_class" json:"student_class"`
	ActivityTitle  string    `db:"activity_title" json:"activity_title"`
	ActivityDate   time.Time `db:"activity_date" json:"activity_date"`
	ActivityPoints int       `db:"activity_points" json:"activity_points"`
	ProgramName    string    `db:"program_name" json:"program_name"`
	RecordedByName string    `db:"recorded_by_name" json:"recorded_by_name"`
}

// ParticipationFilter encapsulates list query parameters.
type ParticipationFilter struct {
	StudentID  string
	ActivityID string
	ProgramID  string
}

// PointAdjustment is an out-of-band manual correction to a student's balance.
// It follows the same atomic balance rule as participations.
type PointAdjustment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Delta       int       `db:"delta" json:"delta"`
	Reason      string    `db:"reason" json:"reason"`
	CreatedByID string    `db:"created_by_id" json:"created_by_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
