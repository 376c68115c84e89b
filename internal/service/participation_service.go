package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	"github.com/ardn-app/ardn-api/internal/repository"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type participationRepository interface {
	FindByPair(ctx context.Context, studentID, activityID string) (*models.Participation, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Participation, error)
	List(ctx context.Context, orgID string, filter models.ParticipationFilter) ([]models.ParticipationDetail, error)
	CreateWithBalance(ctx context.Context, p *models.Participation) (oldTotal, newTotal int, err error)
	DeleteWithBalance(ctx context.Context, p *models.Participation) error
	AutoEnroll(ctx context.Context, activity *models.Activity, recordedByID string) (int, error)
	CreateAdjustment(ctx context.Context, adj *models.PointAdjustment) (int, error)
}

type participationStudentRepository interface {
	FindByID(ctx context.Context, orgID, id string) (*models.StudentDetail, error)
}

type participationActivityRepository interface {
	FindByID(ctx context.Context, orgID, id string) (*models.ActivityDetail, error)
}

// RecordParticipationRequest holds payload for recording a participation.
// Points, when present, overrides the activity's point value.
type RecordParticipationRequest struct {
	StudentID  string  `json:"student_id" validate:"required"`
	ActivityID string  `json:"activity_id" validate:"required"`
	Points     *int    `json:"points" validate:"omitempty,min=0,max=100"`
	IsLate     bool    `json:"is_late"`
	Notes      *string `json:"notes"`
}

// AdjustPointsRequest holds payload for a manual balance correction.
type AdjustPointsRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Delta     int    `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// RecordResult reports a created participation and the balance movement it
// caused.
type RecordResult struct {
	Participation *models.Participation `json:"participation"`
	OldTotal      int                   `json:"old_total"`
	NewTotal      int                   `json:"new_total"`
}

// AdjustResult reports a stored adjustment and the resulting balance.
type AdjustResult struct {
	Adjustment *models.PointAdjustment `json:"adjustment"`
	NewTotal   int                     `json:"new_total"`
}

// lateWindow is how long after the start an activity without an explicit end
// time accepts participations.
const lateWindow = 3 * time.Hour

// ParticipationService owns the recording, removal and auto-enrollment
// use-cases of the point ledger.
type ParticipationService struct {
	repo       participationRepository
	students   participationStudentRepository
	activities participationActivityRepository
	reports    reportInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewParticipationService constructs the participation service. The report
// invalidator and metrics are optional.
func NewParticipationService(repo participationRepository, students participationStudentRepository, activities participationActivityRepository, reports reportInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ParticipationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipationService{
		repo:       repo,
		students:   students,
		activities: activities,
		reports:    reports,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns participation records of the organization.
func (s *ParticipationService) List(ctx context.Context, orgID string, filter models.ParticipationFilter) ([]models.ParticipationDetail, error) {
	records, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participations")
	}
	return records, nil
}

// Record creates a participation and credits the student's balance. The
// preconditions are checked in a fixed order: student, activity, duplicate,
// participation window. A duplicate pair therefore reports a conflict even
// when the window has also closed.
func (s *ParticipationService) Record(ctx context.Context, orgID, recordedByID string, req RecordParticipationRequest) (*RecordResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participation payload")
	}

	student, err := s.students.FindByID(ctx, orgID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	activity, err := s.activities.FindByID(ctx, orgID, req.ActivityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if !activity.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}

	if _, err := s.repo.FindByPair(ctx, req.StudentID, req.ActivityID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "participation already recorded for this student and activity")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing participation")
	}

	now := s.now()
	if now.After(participationCutoff(&activity.Activity)) {
		return nil, appErrors.Clone(appErrors.ErrExpiredWindow, "")
	}

	points := activity.Points
	if req.Points != nil {
		points = *req.Points
	}
	points = applyLatePenalty(points, req.IsLate)

	participation := &models.Participation{
		StudentID:      req.StudentID,
		ActivityID:     req.ActivityID,
		ParticipatedAt: now,
		PointsEarned:   points,
		IsLate:         req.IsLate,
		Notes:          req.Notes,
		RecordedByID:   recordedByID,
	}

	oldTotal, newTotal, err := s.createWithRetry(ctx, participation)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "participation already recorded for this student and activity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record participation")
	}

	s.metrics.RecordParticipation("manual", points)
	s.invalidateReports(ctx, orgID)
	s.logger.Info("participation recorded",
		zap.String("student_id", req.StudentID),
		zap.String("activity_id", req.ActivityID),
		zap.Int("points", points),
		zap.Bool("is_late", req.IsLate),
		zap.Int("old_total", oldTotal),
		zap.Int("new_total", newTotal))

	return &RecordResult{Participation: participation, OldTotal: oldTotal, NewTotal: newTotal}, nil
}

// Remove deletes a participation and reverses its point contribution, with
// the balance clamped at zero.
func (s *ParticipationService) Remove(ctx context.Context, orgID, id string) error {
	participation, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "participation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participation")
	}

	if err := s.deleteWithRetry(ctx, participation); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove participation")
	}

	s.invalidateReports(ctx, orgID)
	s.logger.Info("participation removed",
		zap.String("participation_id", id),
		zap.String("student_id", participation.StudentID),
		zap.Int("points_reversed", participation.PointsEarned))
	return nil
}

// AutoEnroll enrolls every active student of the activity's program who has
// no participation yet, crediting the activity's base points. Returns the
// number of students enrolled and the total points distributed to them.
func (s *ParticipationService) AutoEnroll(ctx context.Context, orgID, activityID, recordedByID string) (enrolled, pointsDistributed int, err error) {
	activity, err := s.activities.FindByID(ctx, orgID, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if !activity.Active {
		return 0, 0, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}

	count, err := s.repo.AutoEnroll(ctx, &activity.Activity, recordedByID)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to auto-enroll students")
	}
	if count > 0 {
		for i := 0; i < count; i++ {
			s.metrics.RecordParticipation("auto_enroll", activity.Points)
		}
		s.invalidateReports(ctx, orgID)
	}
	s.logger.Info("auto-enrollment completed",
		zap.String("activity_id", activityID),
		zap.Int("enrolled", count),
		zap.Int("points_distributed", count*activity.Points))
	return count, count * activity.Points, nil
}

// Adjust records a manual balance correction.
func (s *ParticipationService) Adjust(ctx context.Context, orgID, createdByID string, req AdjustPointsRequest) (*AdjustResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}

	if _, err := s.students.FindByID(ctx, orgID, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	adjustment := &models.PointAdjustment{
		StudentID:   req.StudentID,
		Delta:       req.Delta,
		Reason:      req.Reason,
		CreatedByID: createdByID,
	}
	newTotal, err := s.repo.CreateAdjustment(ctx, adjustment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record adjustment")
	}

	s.invalidateReports(ctx, orgID)
	s.logger.Info("points adjusted",
		zap.String("student_id", req.StudentID),
		zap.Int("delta", req.Delta),
		zap.Int("new_total", newTotal))
	return &AdjustResult{Adjustment: adjustment, NewTotal: newTotal}, nil
}

// createWithRetry retries once when the transaction loses a serialization
// race; any other failure is final.
func (s *ParticipationService) createWithRetry(ctx context.Context, p *models.Participation) (int, int, error) {
	oldTotal, newTotal, err := s.repo.CreateWithBalance(ctx, p)
	if err != nil && repository.IsSerializationFailure(err) {
		s.logger.Warn("participation insert lost a serialization race, retrying", zap.String("student_id", p.StudentID))
		oldTotal, newTotal, err = s.repo.CreateWithBalance(ctx, p)
	}
	return oldTotal, newTotal, err
}

func (s *ParticipationService) deleteWithRetry(ctx context.Context, p *models.Participation) error {
	err := s.repo.DeleteWithBalance(ctx, p)
	if err != nil && repository.IsSerializationFailure(err) {
		s.logger.Warn("participation delete lost a serialization race, retrying", zap.String("participation_id", p.ID))
		err = s.repo.DeleteWithBalance(ctx, p)
	}
	return err
}

func (s *ParticipationService) invalidateReports(ctx context.Context, orgID string) {
	if s.reports == nil {
		return
	}
	if err := s.reports.InvalidateReports(ctx, orgID); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

// participationCutoff returns the last moment the activity accepts
// participations: its end time when set, otherwise the start time plus the
// default window. Recording exactly at the cutoff is still allowed.
func participationCutoff(activity *models.Activity) time.Time {
	if activity.EndTime != nil {
		return *activity.EndTime
	}
	return activity.StartTime.Add(lateWindow)
}

// applyLatePenalty reduces a late participation to 80% of its points, rounded
// down but never below one point, and floors the result at zero.
func applyLatePenalty(points int, isLate bool) int {
	if isLate && points > 0 {
		points = points * 8 / 10
		if points < 1 {
			points = 1
		}
	}
	if points < 0 {
		points = 0
	}
	return points
}
