package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context, orgID string, filter models.ActivityFilter) ([]models.ActivityDetail, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.ActivityDetail, error)
	Create(ctx context.Context, activity *models.Activity) error
	CreateBatch(ctx context.Context, activities []*models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Deactivate(ctx context.Context, orgID, id string) error
}

type activityProgramRepository interface {
	FindByID(ctx context.Context, orgID, id string) (*models.ProgramDetail, error)
}

type autoEnroller interface {
	AutoEnroll(ctx context.Context, orgID, activityID, recordedByID string) (enrolled, pointsDistributed int, err error)
}

type reportInvalidator interface {
	InvalidateReports(ctx context.Context, orgID string) error
}

// CreateActivityRequest holds payload for creating an activity or a recurring
// series of them.
type CreateActivityRequest struct {
	ProgramID         string                 `json:"program_id" validate:"required"`
	Title             string                 `json:"title" validate:"required"`
	Description       *string                `json:"description"`
	ActivityDate      time.Time              `json:"activity_date" validate:"required"`
	StartTime         time.Time              `json:"start_time" validate:"required"`
	EndTime           *time.Time             `json:"end_time"`
	Points            int                    `json:"points" validate:"required,min=1,max=100"`
	MaxParticipants   *int                   `json:"max_participants" validate:"omitempty,min=1"`
	IsRecurring       bool                   `json:"is_recurring"`
	RecurrenceType    *models.RecurrenceType `json:"recurrence_type"`
	RecurrenceEndDate *time.Time             `json:"recurrence_end_date"`
	AutoEnroll        bool                   `json:"auto_enroll"`
}

// UpdateActivityRequest holds a sparse payload for updating an activity
// instance. Nil fields keep their stored value. Recurrence fields are fixed
// at creation time.
type UpdateActivityRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	ActivityDate    *time.Time `json:"activity_date"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Points          *int       `json:"points" validate:"omitempty,min=1,max=100"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,min=1"`
	Active          *bool      `json:"active"`
}

// CreateActivityResult reports what a creation request produced: every stored
// instance plus how many students were auto-enrolled across them.
type CreateActivityResult struct {
	Activities        []*models.Activity `json:"activities"`
	AutoEnrolled      int                `json:"auto_enrolled"`
	PointsDistributed int                `json:"points_distributed"`
	EnrollSkipped     int                `json:"enroll_skipped"`
}

// ActivityService handles activity use-cases including recurring expansion
// and auto-enrollment fan-out.
type ActivityService struct {
	repo      activityRepository
	programs  activityProgramRepository
	enroller  autoEnroller
	reports   reportInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs the activity service. The enroller and report
// invalidator are optional.
func NewActivityService(repo activityRepository, programs activityProgramRepository, enroller autoEnroller, reports reportInvalidator, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, programs: programs, enroller: enroller, reports: reports, validator: validate, logger: logger}
}

// List returns activities and pagination metadata.
func (s *ActivityService) List(ctx context.Context, orgID string, filter models.ActivityFilter) ([]models.ActivityDetail, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return activities, pagination, nil
}

// Series groups recurring instances back into their logical series. Instances
// sharing title, program, points and recurrence type belong together;
// non-recurring activities are excluded.
func (s *ActivityService) Series(ctx context.Context, orgID string, filter models.ActivityFilter) ([]models.ActivitySeries, error) {
	activities, _, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return GroupSeries(activities), nil
}

// Get returns one activity with program context.
func (s *ActivityService) Get(ctx context.Context, orgID, id string) (*models.ActivityDetail, error) {
	activity, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// Create stores a single activity or, for recurring requests, every expanded
// occurrence atomically. Auto-enrollment then runs per stored instance;
// enrollment failures are logged and skipped without rolling the instances
// back.
func (s *ActivityService) Create(ctx context.Context, orgID, createdBy string, req CreateActivityRequest) (*CreateActivityResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if req.EndTime != nil && !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if _, err := s.programs.FindByID(ctx, orgID, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	activities, err := s.buildInstances(orgID, createdBy, req)
	if err != nil {
		return nil, err
	}

	if len(activities) == 1 {
		if err := s.repo.Create(ctx, activities[0]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
		}
	} else {
		if err := s.repo.CreateBatch(ctx, activities); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring activities")
		}
	}

	result := &CreateActivityResult{Activities: activities}
	if req.AutoEnroll && s.enroller != nil {
		for _, activity := range activities {
			count, points, err := s.enroller.AutoEnroll(ctx, orgID, activity.ID, createdBy)
			if err != nil {
				result.EnrollSkipped++
				s.logger.Warn("auto-enrollment failed for activity instance",
					zap.String("activity_id", activity.ID),
					zap.Error(err))
				continue
			}
			result.AutoEnrolled += count
			result.PointsDistributed += points
		}
	}

	if s.reports != nil {
		if err := s.reports.InvalidateReports(ctx, orgID); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("activities created",
		zap.String("organization_id", orgID),
		zap.Int("instances", len(activities)),
		zap.Int("auto_enrolled", result.AutoEnrolled))
	return result, nil
}

// Update modifies one activity instance.
func (s *ActivityService) Update(ctx context.Context, orgID, id string, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	detail, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	activity := detail.Activity
	if req.Title != nil {
		if *req.Title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		activity.Title = *req.Title
	}
	if req.Description != nil {
		activity.Description = req.Description
	}
	if req.ActivityDate != nil {
		activity.ActivityDate = *req.ActivityDate
	}
	if req.StartTime != nil {
		activity.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		activity.EndTime = req.EndTime
	}
	if activity.EndTime != nil && !activity.EndTime.After(activity.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if req.Points != nil {
		activity.Points = *req.Points
	}
	if req.MaxParticipants != nil {
		activity.MaxParticipants = req.MaxParticipants
	}
	if req.Active != nil {
		activity.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}

	if s.reports != nil {
		if err := s.reports.InvalidateReports(ctx, orgID); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.Error(err))
		}
	}
	return &activity, nil
}

// Deactivate soft-deletes an activity instance. Recorded participations and
// the points they granted stay untouched.
func (s *ActivityService) Deactivate(ctx context.Context, orgID, id string) error {
	if _, err := s.repo.FindByID(ctx, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if err := s.repo.Deactivate(ctx, orgID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate activity")
	}
	if s.reports != nil {
		if err := s.reports.InvalidateReports(ctx, orgID); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func (s *ActivityService) buildInstances(orgID, createdBy string, req CreateActivityRequest) ([]*models.Activity, error) {
	template := models.Activity{
		OrganizationID:  orgID,
		ProgramID:       req.ProgramID,
		Title:           req.Title,
		Description:     req.Description,
		ActivityDate:    req.ActivityDate,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Points:          req.Points,
		MaxParticipants: req.MaxParticipants,
		IsRecurring:     req.IsRecurring,
		RecurrenceType:  req.RecurrenceType,
		Active:          true,
		CreatedByID:     createdBy,
	}

	if !req.IsRecurring {
		instance := template
		return []*models.Activity{&instance}, nil
	}

	if req.RecurrenceType == nil || req.RecurrenceEndDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurring activities need a recurrence type and end date")
	}
	dates := ExpandOccurrences(req.ActivityDate, *req.RecurrenceEndDate, *req.RecurrenceType)
	if len(dates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurrence end date is before the activity date")
	}

	activities := make([]*models.Activity, 0, len(dates))
	for _, date := range dates {
		instance := template
		instance.ActivityDate = date
		instance.StartTime = combineDateTime(date, req.StartTime)
		if req.EndTime != nil {
			end := combineDateTime(date, *req.EndTime)
			instance.EndTime = &end
		}
		activities = append(activities, &instance)
	}
	return activities, nil
}

// GroupSeries buckets recurring instances by their series identity, keeping
// the instances in the order the repository returned them.
func GroupSeries(activities []models.ActivityDetail) []models.ActivitySeries {
	var series []models.ActivitySeries
	index := map[string]int{}
	for _, activity := range activities {
		if !activity.IsRecurring || activity.RecurrenceType == nil {
			continue
		}
		key := fmt.Sprintf("%s\x00%s\x00%d\x00%s", activity.Title, activity.ProgramID, activity.Points, *activity.RecurrenceType)
		pos, ok := index[key]
		if !ok {
			index[key] = len(series)
			series = append(series, models.ActivitySeries{
				Title:          activity.Title,
				ProgramID:      activity.ProgramID,
				Points:         activity.Points,
				RecurrenceType: *activity.RecurrenceType,
				Occurrences:    []models.ActivityDetail{activity},
			})
			continue
		}
		series[pos].Occurrences = append(series[pos].Occurrences, activity)
	}
	return series
}
