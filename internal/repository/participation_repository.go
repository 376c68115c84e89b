package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ardn-app/ardn-api/internal/models"
)

// ParticipationRepository owns the point ledger and the student balance
// cache. Every ledger write and its matching balance update share one
// transaction; no other repository writes total_points.
type ParticipationRepository struct {
	db *sqlx.DB
}

// NewParticipationRepository constructs a ParticipationRepository.
func NewParticipationRepository(db *sqlx.DB) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

// FindByPair fetches the participation for a (student, activity) pair.
func (r *ParticipationRepository) FindByPair(ctx context.Context, studentID, activityID string) (*models.Participation, error) {
	const query = `SELECT id, student_id, activity_id, participated_at, points_earned, is_late, notes, recorded_by_id, created_at
        FROM participations WHERE student_id = $1 AND activity_id = $2`
	var p models.Participation
	if err := r.db.GetContext(ctx, &p, query, studentID, activityID); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID fetches a participation scoped to the organization through its
// student relation, so a foreign id resolves the same as a missing one.
func (r *ParticipationRepository) FindByID(ctx context.Context, orgID, id string) (*models.Participation, error) {
	const query = `SELECT p.id, p.student_id, p.activity_id, p.participated_at, p.points_earned, p.is_late, p.notes, p.recorded_by_id, p.created_at
        FROM participations p
        JOIN students s ON s.id = p.student_id
        WHERE p.id = $1 AND s.organization_id = $2`
	var p models.Participation
	if err := r.db.GetContext(ctx, &p, query, id, orgID); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns participation records of the organization, newest first.
func (r *ParticipationRepository) List(ctx context.Context, orgID string, filter models.ParticipationFilter) ([]models.ParticipationDetail, error) {
	base := `FROM participations p
        JOIN students s ON s.id = p.student_id
        JOIN activities a ON a.id = p.activity_id
        JOIN programs pr ON pr.id = a.program_id
        JOIN users u ON u.id = p.recorded_by_id`
	conditions := []string{"s.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("p.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.activity_id, p.participated_at, p.points_earned, p.is_late, p.notes, p.recorded_by_id, p.created_at,
        s.name AS student_name, s.student_number, s.class AS student_class,
        a.title AS activity_title, a.activity_date, a.points AS activity_points,
        pr.name AS program_name, u.full_name AS recorded_by_name
        %s WHERE %s ORDER BY p.participated_at DESC`, base, strings.Join(conditions, " AND "))

	var records []models.ParticipationDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return records, nil
}

// CreateWithBalance inserts the ledger row and increments the student's
// cached balance in one transaction, returning the totals before and after.
// The UNIQUE(student_id, activity_id) constraint is the real duplicate
// guard; a concurrent double-submit surfaces here as a unique violation
// and leaves the balance untouched.
func (r *ParticipationRepository) CreateWithBalance(ctx context.Context, p *models.Participation) (oldTotal, newTotal int, err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	const insertQuery = `INSERT INTO participations (id, student_id, activity_id, participated_at, points_earned, is_late, notes, recorded_by_id, created_at)
        VALUES (:id, :student_id, :activity_id, :participated_at, :points_earned, :is_late, :notes, :recorded_by_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, p); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, 0, fmt.Errorf("insert participation: %w", err)
	}
	const updateQuery = `UPDATE students SET total_points = total_points + $2, updated_at = $3 WHERE id = $1 RETURNING total_points`
	if err := tx.GetContext(ctx, &newTotal, updateQuery, p.StudentID, p.PointsEarned, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, 0, fmt.Errorf("increment balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit participation: %w", err)
	}
	return newTotal - p.PointsEarned, newTotal, nil
}

// DeleteWithBalance removes the ledger row and reverses its point
// contribution, clamping the balance at zero, all in one transaction.
func (r *ParticipationRepository) DeleteWithBalance(ctx context.Context, p *models.Participation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM participations WHERE id = $1`, p.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete participation: %w", err)
	}
	const updateQuery = `UPDATE students SET total_points = GREATEST(total_points - $2, 0), updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, p.StudentID, p.PointsEarned, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("decrement balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit participation delete: %w", err)
	}
	return nil
}

// AutoEnroll creates participation rows for every active student of the
// activity's program who has none yet, and credits their balances, in a
// single transaction per activity instance. Returns the number of students
// enrolled; zero eligible students is a successful no-op.
func (r *ParticipationRepository) AutoEnroll(ctx context.Context, activity *models.Activity, recordedByID string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	const eligibleQuery = `SELECT s.id FROM students s
        WHERE s.organization_id = $1 AND s.program_id = $2 AND s.active = true
        AND NOT EXISTS (SELECT 1 FROM participations p WHERE p.student_id = s.id AND p.activity_id = $3)`
	var studentIDs []string
	if err := tx.SelectContext(ctx, &studentIDs, eligibleQuery, activity.OrganizationID, activity.ProgramID, activity.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("select eligible students: %w", err)
	}
	if len(studentIDs) == 0 {
		tx.Rollback() //nolint:errcheck
		return 0, nil
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO participations (id, student_id, activity_id, participated_at, points_earned, is_late, notes, recorded_by_id, created_at)
        VALUES ($1, $2, $3, $4, $5, false, NULL, $6, $7)`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, insertQuery, uuid.NewString(), studentID, activity.ID, now, activity.Points, recordedByID, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("enroll student %s: %w", studentID, err)
		}
	}

	const updateQuery = `UPDATE students SET total_points = total_points + $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := tx.ExecContext(ctx, updateQuery, activity.Points, now, pq.Array(studentIDs)); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("credit enrolled students: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit auto-enrollment: %w", err)
	}
	return len(studentIDs), nil
}

// CreateAdjustment records a manual point correction and applies its delta to
// the balance cache under the same clamp-at-zero rule as ledger deletions.
func (r *ParticipationRepository) CreateAdjustment(ctx context.Context, adj *models.PointAdjustment) (newTotal int, err error) {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	const insertQuery = `INSERT INTO point_adjustments (id, student_id, delta, reason, created_by_id, created_at)
        VALUES (:id, :student_id, :delta, :reason, :created_by_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, adj); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("insert adjustment: %w", err)
	}
	const updateQuery = `UPDATE students SET total_points = GREATEST(total_points + $2, 0), updated_at = $3 WHERE id = $1 RETURNING total_points`
	if err := tx.GetContext(ctx, &newTotal, updateQuery, adj.StudentID, adj.Delta, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("apply adjustment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjustment: %w", err)
	}
	return newTotal, nil
}
