package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type mockReportRepo struct {
	leaderboard      []models.LeaderboardEntry
	activities       []models.ActivityReport
	byDate           []models.ParticipationByDate
	summary          *models.OrganizationSummary
	leaderboardCalls int
}

func (m *mockReportRepo) Leaderboard(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.LeaderboardEntry, error) {
	m.leaderboardCalls++
	return m.leaderboard, nil
}

func (m *mockReportRepo) ActivitySummaries(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ActivityReport, error) {
	return m.activities, nil
}

func (m *mockReportRepo) ParticipationByDate(ctx context.Context, orgID string, filter models.ReportFilter) ([]models.ParticipationByDate, error) {
	return m.byDate, nil
}

func (m *mockReportRepo) Summary(ctx context.Context, orgID string, topN int) (*models.OrganizationSummary, error) {
	return m.summary, nil
}

// memoryCache is an in-process stand-in for the Redis cache repository.
type memoryCache struct {
	entries  map[string][]byte
	patterns []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	c.entries = map[string][]byte{}
	return nil
}

func TestLeaderboardAssignsRanks(t *testing.T) {
	repo := &mockReportRepo{leaderboard: []models.LeaderboardEntry{
		{StudentID: "s1", TotalPoints: 120},
		{StudentID: "s2", TotalPoints: 120},
		{StudentID: "s3", TotalPoints: 90},
	}}
	svc := NewReportService(repo, nil, time.Minute, zap.NewNop())

	entries, err := svc.Leaderboard(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestActivitiesComputesRateAndAverage(t *testing.T) {
	maxParticipants := 20
	repo := &mockReportRepo{activities: []models.ActivityReport{
		{ActivityID: "a1", TotalParticipants: 15, MaxParticipants: &maxParticipants, PointsAwarded: 120},
		{ActivityID: "a2", TotalParticipants: 10, PointsAwarded: 95},
		{ActivityID: "a3"},
	}}
	svc := NewReportService(repo, nil, time.Minute, zap.NewNop())

	reports, err := svc.Activities(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	// 15 of 20 seats is a 75% rate, not 0.75.
	require.NotNil(t, reports[0].ParticipationRate)
	assert.InDelta(t, 75.0, *reports[0].ParticipationRate, 1e-9)
	assert.InDelta(t, 8.0, reports[0].AveragePoints, 1e-9)

	// Rate is undefined without a participant cap.
	assert.Nil(t, reports[1].ParticipationRate)
	assert.InDelta(t, 9.5, reports[1].AveragePoints, 1e-9)

	assert.Zero(t, reports[2].AveragePoints)
}

func TestParticipationTrendAverages(t *testing.T) {
	repo := &mockReportRepo{byDate: []models.ParticipationByDate{
		{Date: "2024-09-01", TotalParticipations: 30, UniqueStudents: 20},
		{Date: "2024-09-02", TotalParticipations: 0, UniqueStudents: 0},
	}}
	svc := NewReportService(repo, nil, time.Minute, zap.NewNop())

	groups, err := svc.ParticipationTrend(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.InDelta(t, 1.5, groups[0].AveragePerStudent, 1e-9)
	assert.Zero(t, groups[1].AveragePerStudent)
}

func TestLeaderboardCacheHitSkipsRepository(t *testing.T) {
	repo := &mockReportRepo{leaderboard: []models.LeaderboardEntry{{StudentID: "s1", TotalPoints: 50}}}
	cacheSvc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewReportService(repo, cacheSvc, time.Minute, zap.NewNop())

	first, err := svc.Leaderboard(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)
	second, err := svc.Leaderboard(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.leaderboardCalls)
}

func TestLeaderboardCacheKeyVariesWithFilter(t *testing.T) {
	repo := &mockReportRepo{leaderboard: []models.LeaderboardEntry{{StudentID: "s1"}}}
	cacheSvc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewReportService(repo, cacheSvc, time.Minute, zap.NewNop())

	_, err := svc.Leaderboard(context.Background(), "org", models.ReportFilter{})
	require.NoError(t, err)
	_, err = svc.Leaderboard(context.Background(), "org", models.ReportFilter{Class: "7A"})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.leaderboardCalls)
}

func TestInvalidateReportsUsesOrgPattern(t *testing.T) {
	cache := newMemoryCache()
	cacheSvc := NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	svc := NewReportService(&mockReportRepo{}, cacheSvc, time.Minute, zap.NewNop())

	require.NoError(t, svc.InvalidateReports(context.Background(), "org-1"))
	require.Len(t, cache.patterns, 1)
	assert.Equal(t, "reports:org-1:*", cache.patterns[0])
}

func TestSummaryWithoutCache(t *testing.T) {
	repo := &mockReportRepo{summary: &models.OrganizationSummary{
		TotalStudents:      12,
		TotalPointsAwarded: 360,
		TopStudents:        []models.TopStudent{{Rank: 1, StudentID: "s1", TotalPoints: 80}},
	}}
	svc := NewReportService(repo, nil, time.Minute, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "org")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.TotalStudents)
	require.Len(t, summary.TopStudents, 1)
	assert.Equal(t, 1, summary.TopStudents[0].Rank)
}
