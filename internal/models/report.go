package models

import "time"

// ReportFilter narrows report queries. All reports are additionally scoped by
// the caller's organization.
type ReportFilter struct {
	ProgramID string
	Class     string
	StartDate *time.Time
	EndDate   *time.Time
}

// LeaderboardEntry is one ranked row of the leaderboard report.
// PointsInPeriod differs from TotalPoints when a date range is supplied:
// it sums only the participations inside the range.
type LeaderboardEntry struct {
	Rank                   int     `json:"rank"`
	StudentID              string  `db:"student_id" json:"student_id"`
	Name                   string  `db:"name" json:"name"`
	StudentNumber          string  `db:"student_number" json:"student_number"`
	Class                  string  `db:"class" json:"class"`
	PhotoURL               *string `db:"photo_url" json:"photo_url,omitempty"`
	TotalPoints            int     `db:"total_points" json:"total_points"`
	ProgramName            string  `db:"program_name" json:"program_name"`
	PointsInPeriod         int     `db:"points_in_period" json:"points_in_period"`
	ParticipationsInPeriod int     `db:"participations_in_period" json:"participations_in_period"`
}

// ActivityReport summarises participation for one activity.
// ParticipationRate is a percentage (0–100), only set when the activity has a
// participant cap.
type ActivityReport struct {
	ActivityID        string   `db:"activity_id" json:"activity_id"`
	Title             string   `db:"title" json:"title"`
	Date              string   `db:"date" json:"date"`
	ProgramName       string   `db:"program_name" json:"program_name"`
	TotalParticipants int      `db:"total_participants" json:"total_participants"`
	MaxParticipants   *int     `db:"max_participants" json:"max_participants,omitempty"`
	ParticipationRate *float64 `json:"participation_rate,omitempty"`
	PointsAwarded     int      `db:"points_awarded" json:"points_awarded"`
	AveragePoints     float64  `json:"average_points"`
}

// ParticipationByDate groups ledger entries by the calendar date of their activity.
type ParticipationByDate struct {
	Date                string  `db:"date" json:"date"`
	TotalParticipations int     `db:"total_participations" json:"total_participations"`
	UniqueStudents      int     `db:"unique_students" json:"unique_students"`
	AveragePerStudent   float64 `json:"average_participations_per_student"`
}

// OrganizationSummary aggregates tenant-wide counters.
type OrganizationSummary struct {
	TotalStudents                    int          `json:"total_students"`
	TotalActivities                  int          `json:"total_activities"`
	TotalParticipations              int          `json:"total_participations"`
	TotalPointsAwarded               int          `json:"total_points_awarded"`
	ActivePrograms                   int          `json:"active_programs"`
	AveragePointsPerStudent          float64      `json:"average_points_per_student"`
	AverageParticipationsPerActivity float64      `json:"average_participations_per_activity"`
	TopStudents                      []TopStudent `json:"top_students"`
}

// TopStudent is a summary leaderboard row limited to the top performers.
type TopStudent struct {
	Rank        int    `json:"rank"`
	StudentID   string `db:"student_id" json:"student_id"`
	Name        string `db:"name" json:"name"`
	Class       string `db:"class" json:"class"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	ProgramName string `db:"program_name" json:"program_name"`
}
