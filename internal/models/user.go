package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Role is the global privilege level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system.
type User struct {
	ID                 uint   `gorm:"primaryKey"`
	Username           string `gorm:"size:64;uniqueIndex;not null"`
	Email              string `gorm:"size:255;uniqueIndex;not null"`
	DisplayName        string `gorm:"size:255"`
	Bio                string
	PasswordHash       string `gorm:"size:255;not null"`
	SecurityQuestion   string `gorm:"size:255;not null"`
	SecurityAnswerHash string `gorm:"size:255;not null"`
	Role               Role   `gorm:"size:50;not null;default:'user';index"`
	Blocked            bool   `gorm:"not null;default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Name is what other users see: the display name, or the username when unset.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// BeforeSave rejects roles outside the closed set so a typo can never
// persist an unprivileged "admin-like" row.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}
