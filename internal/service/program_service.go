package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, orgID string) ([]models.ProgramDetail, error)
	FindByID(ctx context.Context, orgID, id string) (*models.ProgramDetail, error)
	ExistsByName(ctx context.Context, orgID, name, excludeID string) (bool, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, orgID, id string) error
}

// CreateProgramRequest holds payload for creating programs.
type CreateProgramRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

// UpdateProgramRequest holds a sparse payload for updating programs. Nil
// fields keep their stored value.
type UpdateProgramRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Active      *bool      `json:"active"`
}

// ProgramService handles program use-cases.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs the program service.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns all programs of the organization.
func (s *ProgramService) List(ctx context.Context, orgID string) ([]models.ProgramDetail, error) {
	programs, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, nil
}

// Get returns one program with ownership counts.
func (s *ProgramService) Get(ctx context.Context, orgID, id string) (*models.ProgramDetail, error) {
	program, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create registers a new program.
func (s *ProgramService) Create(ctx context.Context, orgID, createdBy string, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	exists, err := s.repo.ExistsByName(ctx, orgID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate program name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "program name already used")
	}

	program := &models.Program{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Active:         true,
		CreatedByID:    createdBy,
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// Update modifies an existing program.
func (s *ProgramService) Update(ctx context.Context, orgID, id string, req UpdateProgramRequest) (*models.Program, error) {
	detail, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	program := detail.Program
	if req.Name != nil {
		if *req.Name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "program name cannot be empty")
		}
		exists, err := s.repo.ExistsByName(ctx, orgID, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate program name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program name already used")
		}
		program.Name = *req.Name
	}
	if req.Description != nil {
		program.Description = req.Description
	}
	if req.StartDate != nil {
		program.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		program.EndDate = *req.EndDate
	}
	if !program.EndDate.After(program.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	if req.Active != nil {
		program.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return &program, nil
}

// Delete removes a program that owns no students or activities.
func (s *ProgramService) Delete(ctx context.Context, orgID, id string) error {
	detail, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if detail.StudentCount > 0 || detail.ActivityCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "program still has students or activities")
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	return nil
}
