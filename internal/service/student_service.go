package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.StudentDetail, error)
	ExistsByNumber(ctx context.Context, orgID, number, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, orgID, id string) error
	SumLedger(ctx context.Context, orgID, id string) (int, error)
}

type studentProgramRepository interface {
	FindByID(ctx context.Context, orgID, id string) (*models.ProgramDetail, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	ProgramID     string  `json:"program_id" validate:"required"`
	StudentNumber string  `json:"student_number" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Class         string  `json:"class" validate:"required"`
	PhotoURL      *string `json:"photo_url"`
}

// UpdateStudentRequest holds a sparse payload for updating students. Nil
// fields keep their stored value. The cached point balance is not updatable
// here.
type UpdateStudentRequest struct {
	ProgramID     *string `json:"program_id"`
	StudentNumber *string `json:"student_number"`
	Name          *string `json:"name"`
	Class         *string `json:"class"`
	PhotoURL      *string `json:"photo_url"`
	Active        *bool   `json:"active"`
}

// StudentBalance pairs the cached balance with a recomputation from the
// ledger. The two match unless the cache has drifted.
type StudentBalance struct {
	StudentID   string `json:"student_id"`
	TotalPoints int    `json:"total_points"`
	LedgerTotal int    `json:"ledger_total"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	programs  studentProgramRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, programs studentProgramRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, programs: programs, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, orgID, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Balance reports the cached point balance alongside a fresh recomputation
// from the ledger.
func (s *StudentService) Balance(ctx context.Context, orgID, id string) (*StudentBalance, error) {
	student, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	ledgerTotal, err := s.repo.SumLedger(ctx, orgID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute balance")
	}
	if ledgerTotal != student.TotalPoints {
		s.logger.Warn("student balance cache drift",
			zap.String("student_id", id),
			zap.Int("cached", student.TotalPoints),
			zap.Int("ledger", ledgerTotal))
	}
	return &StudentBalance{StudentID: id, TotalPoints: student.TotalPoints, LedgerTotal: ledgerTotal}, nil
}

// Create registers a new student with a zero balance.
func (s *StudentService) Create(ctx context.Context, orgID string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.programs.FindByID(ctx, orgID, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	exists, err := s.repo.ExistsByNumber(ctx, orgID, req.StudentNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
	}

	student := &models.Student{
		OrganizationID: orgID,
		ProgramID:      req.ProgramID,
		StudentNumber:  req.StudentNumber,
		Name:           req.Name,
		Class:          req.Class,
		PhotoURL:       req.PhotoURL,
		TotalPoints:    0,
		Active:         true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, orgID, id string, req UpdateStudentRequest) (*models.Student, error) {
	detail, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student := detail.Student
	if req.ProgramID != nil {
		if _, err := s.programs.FindByID(ctx, orgID, *req.ProgramID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}
		student.ProgramID = *req.ProgramID
	}
	if req.StudentNumber != nil {
		if *req.StudentNumber == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student number cannot be empty")
		}
		exists, err := s.repo.ExistsByNumber(ctx, orgID, *req.StudentNumber, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
		}
		student.StudentNumber = *req.StudentNumber
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		student.Name = *req.Name
	}
	if req.Class != nil {
		student.Class = *req.Class
	}
	if req.PhotoURL != nil {
		student.PhotoURL = req.PhotoURL
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Deactivate marks a student inactive. The participation history and balance
// are preserved.
func (s *StudentService) Deactivate(ctx context.Context, orgID, id string) error {
	if _, err := s.repo.FindByID(ctx, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, orgID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
