// Package auth owns the credential store: registration, login, profile and
// admin user management. Session tokens are issued here and verified by the
// middleware package.
package auth

import (
	"context" // Request scoped operations
	"errors"  // Error classification
	"strings" // Normalisation
	"time"    // Token lifetime

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/domain" // Domain models
	"retail_pos/internal/utils"  // JWT helpers

	"github.com/sirupsen/logrus" // Structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Service manages users and sessions
type Service struct {
	db         *gorm.DB      // Credential store
	secret     string        // Token signing secret
	ttl        time.Duration // Session lifetime
	adminEmail string        // Protected bootstrap admin
}

// NewService builds the auth service
func NewService(db *gorm.DB, secret string, ttl time.Duration, adminEmail string) *Service {
	return &Service{db: db, secret: secret, ttl: ttl, adminEmail: strings.ToLower(adminEmail)}
}

// Session is the result of a successful login
type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// NewUser describes an account to create
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Register creates a user with the default role
func (s *Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return s.create(ctx, NewUser{Username: username, Email: email, Password: password, Role: domain.RoleUser})
}

// CreateUser creates a user with an explicit role (admin path)
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in NewUser) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if !domain.ValidEmail(email) {
		return nil, apperr.Validation("Please use a valid email address")
	}
	if !domain.ValidRole(in.Role) {
		return nil, apperr.Validation("Unknown role")
	}
	if err := s.ensureUnique(ctx, "", username, email); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.New(apperr.KindInternal, "Failed to hash password"), err)
	}
	user := domain.User{Username: username, Email: email, Password: string(hash), Role: in.Role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrDuplicateEmail
		}
		return nil, apperr.Persistence("Failed to create user", err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,   // New user ID
		"username": username,  // Username
		"role":     user.Role, // Assigned role
	}).Info("User registered")
	out := user.Sanitized()
	return &out, nil
}

// ensureUnique rejects an email or username already held by another user
func (s *Service) ensureUnique(ctx context.Context, selfID, username, email string) error {
	var existing domain.User
	q := s.db.WithContext(ctx).Where("email = ?", email)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	err := q.First(&existing).Error
	if err == nil {
		return apperr.ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Persistence("Failed to check email", err)
	}
	q = s.db.WithContext(ctx).Where("username = ?", username)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	err = q.First(&existing).Error
	if err == nil {
		return apperr.ErrDuplicateUser
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Persistence("Failed to check username", err)
	}
	return nil
}

// IssueSession verifies credentials and signs a session token
func (s *Service) IssueSession(ctx context.Context, email, password string) (*Session, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to look up user", err)
	}
	// Compare provided password with stored hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	token, err := utils.GenerateJWT(user.ID, user.Username, user.Role, s.secret, s.ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.New(apperr.KindInternal, "Failed to generate token"), err)
	}
	return &Session{Token: token, User: user.Sanitized()}, nil
}

// Profile returns the sanitized user record
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := user.Sanitized()
	return &out, nil
}

func (s *Service) find(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch user", err)
	}
	return &user, nil
}

// ProfileUpdate lists editable profile fields; nil leaves a field unchanged
type ProfileUpdate struct {
	Username *string
	Email    *string
	Role     *string // Honoured on the admin path only
}

// UpdateProfile edits the caller's own username and email
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error) {
	in.Role = nil
	return s.UpdateUser(ctx, userID, in)
}

// UpdateUser edits any user (admin path)
func (s *Service) UpdateUser(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !domain.ValidEmail(email) {
			return nil, apperr.Validation("Please use a valid email address")
		}
		if user.Email == s.adminEmail && email != s.adminEmail {
			return nil, apperr.Validation("Cannot change the default admin email")
		}
		user.Email = email
	}
	if in.Role != nil {
		if !domain.ValidRole(*in.Role) {
			return nil, apperr.Validation("Unknown role")
		}
		if user.Email == s.adminEmail && *in.Role != domain.RoleAdmin {
			return nil, apperr.Validation("Cannot change the default admin role")
		}
		user.Role = *in.Role
	}
	if err := s.ensureUnique(ctx, user.ID, user.Username, user.Email); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to update user", err)
	}
	out := user.Sanitized()
	return &out, nil
}

// DeleteUser removes a user; the bootstrap admin is protected
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == s.adminEmail {
		return apperr.ErrProtectedAdmin
	}
	res := s.db.WithContext(ctx).Where("id = ?", user.ID).Delete(&domain.User{})
	if res.Error != nil {
		return apperr.Persistence("Failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	logrus.WithField("user_id", user.ID).Info("User deleted")
	return nil
}

// ListUsers returns one page of sanitized users and the total count
func (s *Service) ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count users", err)
	}
	var users []domain.User
	err := s.db.WithContext(ctx).Order("created_at asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
	if err != nil {
		return nil, 0, apperr.Persistence("Failed to fetch users", err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, total, nil
}
