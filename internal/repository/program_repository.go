package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ardn-app/ardn-api/internal/models"
)

// ProgramRepository manages persistence for academic programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs of the organization with ownership counts.
func (r *ProgramRepository) List(ctx context.Context, orgID string) ([]models.ProgramDetail, error) {
	const query = `SELECT p.id, p.organization_id, p.name, p.description, p.start_date, p.end_date, p.active, p.created_by_id, p.created_at, p.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.program_id = p.id) AS student_count,
        (SELECT COUNT(*) FROM activities a WHERE a.program_id = p.id) AS activity_count
        FROM programs p
        WHERE p.organization_id = $1
        ORDER BY p.start_date DESC`
	var programs []models.ProgramDetail
	if err := r.db.SelectContext(ctx, &programs, query, orgID); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindByID fetches a program scoped to the organization.
func (r *ProgramRepository) FindByID(ctx context.Context, orgID, id string) (*models.ProgramDetail, error) {
	const query = `SELECT p.id, p.organization_id, p.name, p.description, p.start_date, p.end_date, p.active, p.created_by_id, p.created_at, p.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.program_id = p.id) AS student_count,
        (SELECT COUNT(*) FROM activities a WHERE a.program_id = p.id) AS activity_count
        FROM programs p
        WHERE p.id = $1 AND p.organization_id = $2`
	var program models.ProgramDetail
	if err := r.db.GetContext(ctx, &program, query, id, orgID); err != nil {
		return nil, err
	}
	return &program, nil
}

// ExistsByName checks for a duplicate program name within the organization,
// optionally excluding an id.
func (r *ProgramRepository) ExistsByName(ctx context.Context, orgID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM programs WHERE organization_id = $1 AND name = $2"
	args := []interface{}{orgID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program name: %w", err)
	}
	return true, nil
}

// Create inserts a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, organization_id, name, description, start_date, end_date, active, created_by_id, created_at, updated_at)
        VALUES (:id, :organization_id, :name, :description, :start_date, :end_date, :active, :created_by_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies an existing program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET name = :name, description = :description, start_date = :start_date, end_date = :end_date, active = :active, updated_at = :updated_at
        WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// Delete removes a program. Callers must have verified it owns no students or
// activities; the foreign keys are the backstop.
func (r *ProgramRepository) Delete(ctx context.Context, orgID, id string) error {
	const query = `DELETE FROM programs WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}
