package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]models.StudentDetail
	numbers     map[string]string
	ledgerTotal int
	created     []*models.Student
	updated     []*models.Student
	deactivated []string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students: map[string]models.StudentDetail{},
		numbers:  map[string]string{},
	}
}

func (m *mockStudentRepo) List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	students := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		students = append(students, s)
	}
	return students, len(students), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, orgID, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNumber(ctx context.Context, orgID, number, excludeID string) (bool, error) {
	id, ok := m.numbers[number]
	return ok && id != excludeID, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "created"
	m.created = append(m.created, student)
	m.numbers[student.StudentNumber] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updated = append(m.updated, student)
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, orgID, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockStudentRepo) SumLedger(ctx context.Context, orgID, id string) (int, error) {
	return m.ledgerTotal, nil
}

func validStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		ProgramID:     "prog",
		StudentNumber: "2024-001",
		Name:          "Siti Rahma",
		Class:         "7A",
	}
}

func TestStudentCreate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, knownProgram(), validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), "org", validStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, student.TotalPoints)
	assert.True(t, student.Active)
	require.Len(t, repo.created, 1)
}

func TestStudentCreateDuplicateNumber(t *testing.T) {
	repo := newMockStudentRepo()
	repo.numbers["2024-001"] = "existing"
	svc := NewStudentService(repo, knownProgram(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "org", validStudentRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestStudentCreateUnknownProgram(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), &mockProgramLookup{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "org", validStudentRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentCreateMissingFields(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), knownProgram(), validator.New(), zap.NewNop())

	req := validStudentRequest()
	req.Name = ""
	_, err := svc.Create(context.Background(), "org", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentUpdateSparse(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["s1"] = models.StudentDetail{Student: models.Student{
		ID:             "s1",
		OrganizationID: "org",
		ProgramID:      "prog",
		StudentNumber:  "2024-001",
		Name:           "Siti Rahma",
		Class:          "7A",
		TotalPoints:    40,
		Active:         true,
	}}
	svc := NewStudentService(repo, knownProgram(), validator.New(), zap.NewNop())

	newClass := "8A"
	student, err := svc.Update(context.Background(), "org", "s1", UpdateStudentRequest{Class: &newClass})
	require.NoError(t, err)
	assert.Equal(t, "8A", student.Class)
	assert.Equal(t, "Siti Rahma", student.Name)
	// Balance cache is never writable through the update path.
	assert.Equal(t, 40, student.TotalPoints)
}

func TestStudentBalanceReportsDrift(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["s1"] = models.StudentDetail{Student: models.Student{
		ID:             "s1",
		OrganizationID: "org",
		TotalPoints:    40,
	}}
	repo.ledgerTotal = 37
	svc := NewStudentService(repo, knownProgram(), validator.New(), zap.NewNop())

	balance, err := svc.Balance(context.Background(), "org", "s1")
	require.NoError(t, err)
	assert.Equal(t, 40, balance.TotalPoints)
	assert.Equal(t, 37, balance.LedgerTotal)
}

func TestStudentDeactivate(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["s1"] = models.StudentDetail{Student: models.Student{ID: "s1", OrganizationID: "org", Active: true}}
	svc := NewStudentService(repo, knownProgram(), validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "org", "s1"))
	assert.Equal(t, []string{"s1"}, repo.deactivated)
}

func TestStudentDeactivateNotFound(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), knownProgram(), validator.New(), zap.NewNop())

	err := svc.Deactivate(context.Background(), "org", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
