package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ardn-app/ardn-api/internal/models"
)

// ActivityRepository manages persistence for activity instances.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns activities of the organization with program context and
// participant counts, active first, newest first.
func (r *ActivityRepository) List(ctx context.Context, orgID string, filter models.ActivityFilter) ([]models.ActivityDetail, int, error) {
	base := "FROM activities a JOIN programs p ON p.id = a.program_id"
	conditions := []string{"a.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("a.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.organization_id, a.program_id, a.title, a.description, a.activity_date, a.start_time, a.end_time, a.points, a.max_participants, a.is_recurring, a.recurrence_type, a.active, a.created_by_id, a.created_at, a.updated_at,
        p.name AS program_name,
        (SELECT COUNT(*) FROM participations pa WHERE pa.activity_id = a.id) AS participant_count
        %s ORDER BY a.active DESC, a.activity_date DESC LIMIT %d OFFSET %d`, base, size, offset)

	var activities []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// FindByID fetches an activity scoped to the organization.
func (r *ActivityRepository) FindByID(ctx context.Context, orgID, id string) (*models.ActivityDetail, error) {
	const query = `SELECT a.id, a.organization_id, a.program_id, a.title, a.description, a.activity_date, a.start_time, a.end_time, a.points, a.max_participants, a.is_recurring, a.recurrence_type, a.active, a.created_by_id, a.created_at, a.updated_at,
        p.name AS program_name,
        (SELECT COUNT(*) FROM participations pa WHERE pa.activity_id = a.id) AS participant_count
        FROM activities a
        JOIN programs p ON p.id = a.program_id
        WHERE a.id = $1 AND a.organization_id = $2`
	var detail models.ActivityDetail
	if err := r.db.GetContext(ctx, &detail, query, id, orgID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a single activity.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	prepareActivity(activity)
	if _, err := r.db.NamedExecContext(ctx, insertActivityQuery, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// CreateBatch inserts all occurrences of a recurring request in one
// transaction; either every row lands or none do.
func (r *ActivityRepository) CreateBatch(ctx context.Context, activities []*models.Activity) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, activity := range activities {
		prepareActivity(activity)
		if _, err := tx.NamedExecContext(ctx, insertActivityQuery, activity); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("create recurring activity: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recurring activities: %w", err)
	}
	return nil
}

// Update modifies an existing activity.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET title = :title, description = :description, activity_date = :activity_date, start_time = :start_time, end_time = :end_time, points = :points, max_participants = :max_participants, is_recurring = :is_recurring, recurrence_type = :recurrence_type, active = :active, updated_at = :updated_at
        WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an activity.
func (r *ActivityRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE activities SET active = false, updated_at = $3 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate activity: %w", err)
	}
	return nil
}

const insertActivityQuery = `INSERT INTO activities (id, organization_id, program_id, title, description, activity_date, start_time, end_time, points, max_participants, is_recurring, recurrence_type, active, created_by_id, created_at, updated_at)
    VALUES (:id, :organization_id, :program_id, :title, :description, :activity_date, :start_time, :end_time, :points, :max_participants, :is_recurring, :recurrence_type, :active, :created_by_id, :created_at, :updated_at)`

func prepareActivity(activity *models.Activity) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now
}
