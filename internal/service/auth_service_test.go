package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ardn-app/ardn-api/internal/models"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	createErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByEmail: map[string]*models.User{}}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.usersByEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) CreateWithOrganization(ctx context.Context, org *models.Organization, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	org.ID = "org-1"
	user.ID = "user-1"
	user.OrganizationID = org.ID
	m.usersByEmail[user.Email] = user
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "ardn-api"}
}

func seedUser(t *testing.T, repo *mockUserRepo, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:             "user-1",
		OrganizationID: "org-1",
		Email:          "admin@example.com",
		PasswordHash:   string(hash),
		FullName:       "Admin",
		Role:           models.RoleAdmin,
		Active:         active,
	}
	repo.usersByEmail[user.Email] = user
	return user
}

func TestLoginIssuesValidToken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "rahasia1", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "rahasia1"})
	require.NoError(t, err)
	assert.Equal(t, "org-1", resp.User.OrganizationID)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "rahasia1", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "salah"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "rahasia1", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "rahasia1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestRegisterProvisionsOwner(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		OrganizationName: "SMP Harapan",
		OrganizationSlug: "smp-harapan",
		Email:            "owner@example.com",
		Password:         "rahasia1",
		FullName:         "Owner",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Equal(t, "org-1", resp.User.OrganizationID)

	// The owner can log straight back in with the same credentials.
	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@example.com", Password: "rahasia1"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterSlugConflict(t *testing.T) {
	repo := newMockUserRepo()
	repo.createErr = &pq.Error{Code: "23505"}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		OrganizationName: "SMP Harapan",
		OrganizationSlug: "smp-harapan",
		Email:            "owner@example.com",
		Password:         "rahasia1",
		FullName:         "Owner",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "rahasia1", true)
	issuer := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{Secret: "other-secret", Expiration: time.Hour, Issuer: "ardn-api"})
	verifier := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := issuer.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "rahasia1"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
