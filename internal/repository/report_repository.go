package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ardn-app/ardn-api/internal/models"
)

// ReportRepository computes read-only rollups over the point ledger. Nothing
// here mutates state.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Leaderboard returns active students ordered by cached balance descending.
// Ties are broken by creation order then id so ranks are deterministic.
// When a date range is present, points_in_period sums only participations
// inside it; total_points remains all-time.
func (r *ReportRepository) Leaderboard(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.LeaderboardEntry, error) {
	conditions := []string{"s.organization_id = $1", "s.active = true"}
	args := []interface{}{orgID}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("s.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("s.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}

	periodConditions := []string{"p.student_id = s.id"}
	if filter.StartDate != nil {
		periodConditions = append(periodConditions, fmt.Sprintf("p.participated_at >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		periodConditions = append(periodConditions, fmt.Sprintf("p.participated_at <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	query := fmt.Sprintf(`SELECT s.id AS student_id, s.name, s.student_number, s.class, s.photo_url, s.total_points, pr.name AS program_name,
        COALESCE((SELECT SUM(p.points_earned) FROM participations p WHERE %s), 0) AS points_in_period,
        COALESCE((SELECT COUNT(*) FROM participations p WHERE %s), 0) AS participations_in_period
        FROM students s
        JOIN programs pr ON pr.id = s.program_id
        WHERE %s
        ORDER BY s.total_points DESC, s.created_at ASC, s.id ASC`,
		strings.Join(periodConditions, " AND "),
		strings.Join(periodConditions, " AND "),
		strings.Join(conditions, " AND "))

	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

// ActivitySummaries returns per-activity participation stats.
func (r *ReportRepository) ActivitySummaries(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ActivityReport, error) {
	conditions := []string{"a.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.activity_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.activity_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	query := fmt.Sprintf(`SELECT a.id AS activity_id, a.title, TO_CHAR(a.activity_date, 'YYYY-MM-DD') AS date, pr.name AS program_name,
        a.max_participants,
        COUNT(p.id) AS total_participants,
        COALESCE(SUM(p.points_earned), 0) AS points_awarded
        FROM activities a
        JOIN programs pr ON pr.id = a.program_id
        LEFT JOIN participations p ON p.activity_id = a.id
        WHERE %s
        GROUP BY a.id, a.title, a.activity_date, pr.name, a.max_participants
        ORDER BY a.activity_date DESC`, strings.Join(conditions, " AND "))

	var reports []models.ActivityReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("activity summaries: %w", err)
	}
	return reports, nil
}

// ParticipationByDate groups ledger entries by the calendar date of their
// activity, ascending.
func (r *ReportRepository) ParticipationByDate(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ParticipationByDate, error) {
	conditions := []string{"s.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("s.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.activity_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.activity_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	query := fmt.Sprintf(`SELECT TO_CHAR(a.activity_date, 'YYYY-MM-DD') AS date,
        COUNT(*) AS total_participations,
        COUNT(DISTINCT p.student_id) AS unique_students
        FROM participations p
        JOIN students s ON s.id = p.student_id
        JOIN activities a ON a.id = p.activity_id
        WHERE %s
        GROUP BY a.activity_date
        ORDER BY a.activity_date ASC`, strings.Join(conditions, " AND "))

	var groups []models.ParticipationByDate
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("participation by date: %w", err)
	}
	return groups, nil
}

// Summary returns tenant-wide counters and the top students by balance.
func (r *ReportRepository) Summary(ctx context.Context, orgID string, topN int) (*models.OrganizationSummary, error) {
	summary := &models.OrganizationSummary{}

	counters := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM students WHERE organization_id = $1 AND active = true`, &summary.TotalStudents},
		{`SELECT COUNT(*) FROM activities WHERE organization_id = $1 AND active = true`, &summary.TotalActivities},
		{`SELECT COUNT(*) FROM participations p JOIN students s ON s.id = p.student_id WHERE s.organization_id = $1`, &summary.TotalParticipations},
		{`SELECT COALESCE(SUM(p.points_earned), 0) FROM participations p JOIN students s ON s.id = p.student_id WHERE s.organization_id = $1`, &summary.TotalPointsAwarded},
		{`SELECT COUNT(*) FROM programs WHERE organization_id = $1 AND active = true`, &summary.ActivePrograms},
	}
	for _, c := range counters {
		if err := r.db.GetContext(ctx, c.dest, c.query, orgID); err != nil {
			return nil, fmt.Errorf("summary counters: %w", err)
		}
	}

	if summary.TotalStudents > 0 {
		summary.AveragePointsPerStudent = float64(summary.TotalPointsAwarded) / float64(summary.TotalStudents)
	}
	if summary.TotalActivities > 0 {
		summary.AverageParticipationsPerActivity = float64(summary.TotalParticipations) / float64(summary.TotalActivities)
	}

	if topN <= 0 {
		topN = 5
	}
	const topQuery = `SELECT s.id AS student_id, s.name, s.class, s.total_points, pr.name AS program_name
        FROM students s
        JOIN programs pr ON pr.id = s.program_id
        WHERE s.organization_id = $1 AND s.active = true
        ORDER BY s.total_points DESC, s.created_at ASC, s.id ASC
        LIMIT $2`
	if err := r.db.SelectContext(ctx, &summary.TopStudents, topQuery, orgID, topN); err != nil {
		return nil, fmt.Errorf("summary top students: %w", err)
	}
	for i := range summary.TopStudents {
		summary.TopStudents[i].Rank = i + 1
	}

	return summary, nil
}
