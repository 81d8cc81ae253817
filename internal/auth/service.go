package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidUsername    = fmt.Errorf("username must be %d-%d characters", minUsernameLength, maxUsernameLength)
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// User is a chat participant.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// AutoMigrate creates the users table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}

// Session is the result of a signup or login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Service registers and authenticates users.
type Service struct {
	db     *gorm.DB
	tokens *TokenService
	cost   int
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates an auth service.
func NewService(db *gorm.DB, tokens *TokenService, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		db:     db,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: logger.With(zap.String("component", "auth")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens exposes the token service for the HTTP middleware.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Signup creates a user and returns a session.
func (s *Service) Signup(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if l := len(username); l < minUsernameLength || l > maxUsernameLength {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	user, err := s.create(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.session(user)
}

// Login checks the password and returns a session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(&user)
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser creates the user unless the username exists. It reports
// whether a row was created. Used by the seed command.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.create(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) create(ctx context.Context, username, password string) (*User, error) {
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{Username: username, PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, ErrUsernameTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) session(user *User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}
