package domain

import (
	"regexp" // Email format check
	"time"   // Timestamps

	"github.com/google/uuid" // Primary key generation
	"gorm.io/gorm"           // GORM ORM library
)

// Roles a user may hold
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// User Model
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`                 // Primary key
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"` // Unique username
	Email     string    `gorm:"size:191;uniqueIndex;not null" json:"email"`   // Unique, lowercased email
	Password  string    `gorm:"not null" json:"-"`                            // Hashed password
	Role      string    `gorm:"size:16;default:user;not null" json:"role"`    // Role: user, admin or moderator
	CreatedAt time.Time `json:"createdAt"`                                    // Creation time
	UpdatedAt time.Time `json:"updatedAt"`                                    // Last modification time
}

// BeforeCreate assigns a UUID when none was set
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// Sanitized returns a copy safe to send to clients
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

// ValidEmail reports whether email has the accepted address shape
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}
