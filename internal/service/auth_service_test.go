package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func testTokenManager() *TokenManager {
	return NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 720*time.Hour)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ahmed@example.com").Return(nil, apperror.ErrUserNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "ahmed@example.com" && u.Role == models.RoleProvider && u.PasswordHash != ""
	})).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "ahmed@example.com",
		Password: "Password1",
		FullName: "Ахмед Али",
		Role:     models.RoleProvider,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_AdminRoleForbidden(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), testTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "root@example.com",
		Password: "Password1",
		FullName: "Root",
		Role:     models.RoleAdmin,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "client или provider")
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "taken@example.com").Return(&models.User{ID: uuid.New()}, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "taken@example.com",
		Password: "Password1",
		FullName: "Имя Фамилия",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "уже зарегистрирован")
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), testTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "short",
		FullName: "Имя Фамилия",
	})
	assert.Error(t, err)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	repo.On("GetByEmail", ctx, "user@example.com").Return(&models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "WrongPass1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "неверный email или пароль")
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "banned@example.com").Return(&models.User{
		ID:       uuid.New(),
		Email:    "banned@example.com",
		IsActive: false,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "banned@example.com", Password: "Password1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "заблокирован")
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens)
	ctx := context.Background()

	userID := uuid.New()
	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	repo.On("GetByEmail", ctx, "user@example.com").Return(&models.User{
		ID:           userID,
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleClient,
		IsActive:     true,
	}, nil)

	result, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "Password1"})
	assert.NoError(t, err)

	parsedID, role, err := tokens.ParseAccess(result.TokenPair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.Equal(t, models.RoleClient, role)
}
