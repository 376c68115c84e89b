package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ardn-app/ardn-api/internal/models"
)

// StudentRepository manages persistence for student records. The balance
// cache column (total_points) is never written here; only the participation
// and adjustment repositories touch it, inside their transactions.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students of the organization matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s JOIN programs p ON p.id = s.program_id"
	conditions := []string{"s.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("s.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("s.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.student_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":           "s.name",
		"student_number": "s.student_number",
		"total_points":   "s.total_points",
		"created_at":     "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.organization_id, s.program_id, s.student_number, s.name, s.class, s.photo_url, s.total_points, s.active, s.created_at, s.updated_at,
        p.name AS program_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student scoped to the organization.
func (r *StudentRepository) FindByID(ctx context.Context, orgID, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.organization_id, s.program_id, s.student_number, s.name, s.class, s.photo_url, s.total_points, s.active, s.created_at, s.updated_at,
        p.name AS program_name
        FROM students s
        JOIN programs p ON p.id = s.program_id
        WHERE s.id = $1 AND s.organization_id = $2`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id, orgID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByNumber checks if a student number is taken within the organization,
// optionally excluding an id.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, orgID, number, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE organization_id = $1 AND student_number = $2"
	args := []interface{}{orgID, number}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, organization_id, program_id, student_number, name, class, photo_url, total_points, active, created_at, updated_at)
        VALUES (:id, :organization_id, :program_id, :student_number, :name, :class, :photo_url, :total_points, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. total_points is deliberately absent
// from the statement.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET program_id = :program_id, student_number = :student_number, name = :name, class = :class, photo_url = :photo_url, active = :active, updated_at = :updated_at
        WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive. Students are never hard-deleted.
func (r *StudentRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $3 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// SumLedger recomputes a student's balance from the ledger: the sum of
// participation points plus adjustment deltas, floored at zero. Used to
// verify or rebuild the cached total.
func (r *StudentRepository) SumLedger(ctx context.Context, orgID, id string) (int, error) {
	const query = `SELECT GREATEST(
        COALESCE((SELECT SUM(p.points_earned) FROM participations p WHERE p.student_id = s.id), 0) +
        COALESCE((SELECT SUM(a.delta) FROM point_adjustments a WHERE a.student_id = s.id), 0), 0)
        FROM students s WHERE s.id = $1 AND s.organization_id = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, id, orgID); err != nil {
		return 0, err
	}
	return total, nil
}
