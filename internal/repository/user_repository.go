package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ardn-app/ardn-api/internal/models"
)

// UserRepository manages persistence for staff accounts and tenant onboarding.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail fetches a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, organization_id, email, password_hash, full_name, role, active, created_at, updated_at
        FROM users WHERE email = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, organization_id, email, password_hash, full_name, role, active, created_at, updated_at
        FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateWithOrganization provisions a new organization together with its owner
// account. Both rows are committed atomically; a duplicate slug or email
// surfaces as a unique violation and leaves nothing behind.
func (r *UserRepository) CreateWithOrganization(ctx context.Context, org *models.Organization, user *models.User) error {
	now := time.Now().UTC()
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	org.CreatedAt, org.UpdatedAt = now, now
	user.OrganizationID = org.ID
	user.CreatedAt, user.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const orgQuery = `INSERT INTO organizations (id, name, slug, active, created_at, updated_at)
        VALUES (:id, :name, :slug, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, orgQuery, org); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create organization: %w", err)
	}
	const userQuery = `INSERT INTO users (id, organization_id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :organization_id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create owner user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}
