package auth

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))

	tokens := NewTokenService("test-secret", time.Hour)
	return NewService(db, tokens, zap.NewNop(), WithBcryptCost(bcrypt.MinCost))
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Signup(ctx, "  ada  ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada", session.User.Username)
	assert.NotZero(t, session.User.ID)

	claims, err := svc.Tokens().Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Username())
	assert.Equal(t, session.User.ID, claims.UID)

	login, err := svc.Login(ctx, "ada", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ab", "secret1")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Signup(ctx, "alice", "12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "grace", "secret1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "grace", "another1")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin_Failures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "linus", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "linus", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureUser_Idempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureUser(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureUser(ctx, "admin", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.Login(ctx, "admin", "admin123")
	assert.NoError(t, err)
}

func TestGetUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Signup(ctx, "marie", "secret1")
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "marie", user.Username)

	_, err = svc.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
