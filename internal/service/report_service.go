package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type reportRepository interface {
	Leaderboard(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.LeaderboardEntry, error)
	ActivitySummaries(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ActivityReport, error)
	ParticipationByDate(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ParticipationByDate, error)
	Summary(ctx context.Context, orgID string, topN int) (*models.OrganizationSummary, error)
}

// ReportService computes read-only aggregations with a Redis cache in front.
// Every ledger mutation invalidates the organization's cached reports.
type ReportService struct {
	repo   reportRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportService constructs the report service. The cache is optional.
func NewReportService(repo reportRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReportService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Leaderboard returns ranked students. Ranks are dense over the returned
// order, starting at one.
func (s *ReportService) Leaderboard(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.LeaderboardEntry, error) {
	key := s.cacheKey(orgID, "leaderboard", filter)
	var cached []models.LeaderboardEntry
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	entries, err := s.repo.Leaderboard(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build leaderboard")
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// Activities returns per-activity participation summaries. The participation
// rate is only defined for activities with a participant cap.
func (s *ReportService) Activities(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ActivityReport, error) {
	key := s.cacheKey(orgID, "activities", filter)
	var cached []models.ActivityReport
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	reports, err := s.repo.ActivitySummaries(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build activity report")
	}
	for i := range reports {
		if reports[i].MaxParticipants != nil && *reports[i].MaxParticipants > 0 {
			rate := float64(reports[i].TotalParticipants) / float64(*reports[i].MaxParticipants) * 100
			reports[i].ParticipationRate = &rate
		}
		if reports[i].TotalParticipants > 0 {
			reports[i].AveragePoints = float64(reports[i].PointsAwarded) / float64(reports[i].TotalParticipants)
		}
	}

	s.store(ctx, key, reports)
	return reports, nil
}

// ParticipationTrend returns participations grouped by activity date.
func (s *ReportService) ParticipationTrend(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ParticipationByDate, error) {
	key := s.cacheKey(orgID, "participation", filter)
	var cached []models.ParticipationByDate
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	groups, err := s.repo.ParticipationByDate(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build participation report")
	}
	for i := range groups {
		if groups[i].UniqueStudents > 0 {
			groups[i].AveragePerStudent = float64(groups[i].TotalParticipations) / float64(groups[i].UniqueStudents)
		}
	}

	s.store(ctx, key, groups)
	return groups, nil
}

// Summary returns tenant-wide counters and the top five students.
func (s *ReportService) Summary(ctx context.Context, orgID string) (*models.OrganizationSummary, error) {
	key := fmt.Sprintf("reports:%s:summary", orgID)
	var cached models.OrganizationSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	summary, err := s.repo.Summary(ctx, orgID, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}

	s.store(ctx, key, summary)
	return summary, nil
}

// InvalidateReports drops every cached report of the organization.
func (s *ReportService) InvalidateReports(ctx context.Context, orgID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, fmt.Sprintf("reports:%s:*", orgID))
}

func (s *ReportService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}

func (s *ReportService) cacheKey(orgID, report string, filter models.ReportFilter) string {
	parts := []string{filter.ProgramID, filter.Class}
	if filter.StartDate != nil {
		parts = append(parts, filter.StartDate.UTC().Format("2006-01-02"))
	} else {
		parts = append(parts, "")
	}
	if filter.EndDate != nil {
		parts = append(parts, filter.EndDate.UTC().Format("2006-01-02"))
	} else {
		parts = append(parts, "")
	}
	return fmt.Sprintf("reports:%s:%s:%s", orgID, report, strings.Join(parts, "|"))
}
