package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type mockProgramRepo struct {
	programs map[string]models.ProgramDetail
	names    map[string]string
	created  []*models.Program
	updated  []*models.Program
	deleted  []string
}

func newMockProgramRepo() *mockProgramRepo {
	return &mockProgramRepo{
		programs: map[string]models.ProgramDetail{},
		names:    map[string]string{},
	}
}

func (m *mockProgramRepo) List(ctx context.Context, orgID string) ([]models.ProgramDetail, error) {
	programs := make([]models.ProgramDetail, 0, len(m.programs))
	for _, p := range m.programs {
		programs = append(programs, p)
	}
	return programs, nil
}

func (m *mockProgramRepo) FindByID(ctx context.Context, orgID, id string) (*models.ProgramDetail, error) {
	if p, ok := m.programs[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgramRepo) ExistsByName(ctx context.Context, orgID, name, excludeID string) (bool, error) {
	id, ok := m.names[name]
	return ok && id != excludeID, nil
}

func (m *mockProgramRepo) Create(ctx context.Context, program *models.Program) error {
	program.ID = "created"
	m.created = append(m.created, program)
	m.names[program.Name] = program.ID
	return nil
}

func (m *mockProgramRepo) Update(ctx context.Context, program *models.Program) error {
	m.updated = append(m.updated, program)
	return nil
}

func (m *mockProgramRepo) Delete(ctx context.Context, orgID, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.programs, id)
	return nil
}

func validProgramRequest() CreateProgramRequest {
	return CreateProgramRequest{
		Name:      "Semester Ganjil",
		StartDate: date(2024, time.July, 15),
		EndDate:   date(2024, time.December, 20),
	}
}

func TestProgramCreate(t *testing.T) {
	repo := newMockProgramRepo()
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	program, err := svc.Create(context.Background(), "org", "admin", validProgramRequest())
	require.NoError(t, err)
	assert.Equal(t, "org", program.OrganizationID)
	assert.Equal(t, "admin", program.CreatedByID)
	assert.True(t, program.Active)
	require.Len(t, repo.created, 1)
}

func TestProgramCreateDuplicateName(t *testing.T) {
	repo := newMockProgramRepo()
	repo.names["Semester Ganjil"] = "existing"
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "org", "admin", validProgramRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestProgramCreateEndBeforeStart(t *testing.T) {
	svc := NewProgramService(newMockProgramRepo(), validator.New(), zap.NewNop())

	req := validProgramRequest()
	req.EndDate = req.StartDate
	_, err := svc.Create(context.Background(), "org", "admin", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestProgramUpdateSparse(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["p1"] = models.ProgramDetail{Program: models.Program{
		ID:             "p1",
		OrganizationID: "org",
		Name:           "Semester Ganjil",
		StartDate:      date(2024, time.July, 15),
		EndDate:        date(2024, time.December, 20),
		Active:         true,
	}}
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	newName := "Semester Genap"
	program, err := svc.Update(context.Background(), "org", "p1", UpdateProgramRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Semester Genap", program.Name)
	assert.Equal(t, date(2024, time.December, 20), program.EndDate)
}

func TestProgramUpdateRejectsInvertedDates(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["p1"] = models.ProgramDetail{Program: models.Program{
		ID:             "p1",
		OrganizationID: "org",
		Name:           "Semester Ganjil",
		StartDate:      date(2024, time.July, 15),
		EndDate:        date(2024, time.December, 20),
	}}
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	badEnd := date(2024, time.July, 1)
	_, err := svc.Update(context.Background(), "org", "p1", UpdateProgramRequest{EndDate: &badEnd})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestProgramDeleteGuardsOwnedRecords(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["p1"] = models.ProgramDetail{
		Program:      models.Program{ID: "p1", OrganizationID: "org"},
		StudentCount: 4,
	}
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "org", "p1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, repo.deleted)
}

func TestProgramDeleteEmptyProgram(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["p1"] = models.ProgramDetail{Program: models.Program{ID: "p1", OrganizationID: "org"}}
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "org", "p1"))
	assert.Equal(t, []string{"p1"}, repo.deleted)
}

func TestProgramGetNotFound(t *testing.T) {
	svc := NewProgramService(newMockProgramRepo(), validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "org", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
