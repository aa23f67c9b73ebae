package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User represents a user account. PasswordHash is empty for users that only
// sign in through SSO.
type User struct {
	BaseModel
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar"`
	PasswordHash string    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AvatarURL returns the configured avatar or a gravatar derived from the email
func (u *User) AvatarURL() string {
	if u.Avatar != "" {
		return u.Avatar
	}
	if u.Email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}

// Project is identified by a positive integer id
type Project struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Membership links a user to a project
type Membership struct {
	BaseModel
	UserID    string  `json:"user_id" gorm:"type:varchar(26);not null;uniqueIndex:idx_membership"`
	ProjectID uint64  `json:"project_id" gorm:"not null;uniqueIndex:idx_membership"`
	User      User    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Project   Project `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// SSOMethod is a single sign-on provider offered on the login page
type SSOMethod struct {
	BaseModel
	Name     string `json:"name" gorm:"uniqueIndex;not null"`
	URL      string `json:"url" gorm:"not null"`
	Enabled  bool   `json:"enabled" gorm:"not null;default:true"`
	Position int    `json:"position" gorm:"not null;default:0"`
}

// RevokedSession records a logged out token until it would have expired
type RevokedSession struct {
	TokenID   string    `gorm:"primaryKey;type:varchar(26)"`
	UserID    string    `gorm:"type:varchar(26);index"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&User{}, &Project{}, &Membership{}, &SSOMethod{}, &RevokedSession{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindUserByUsername returns gorm.ErrRecordNotFound when no user matches
func FindUserByUsername(db *gorm.DB, username string) (*User, error) {
	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ProjectsForUser returns the projects the user is a member of, ordered by id
func ProjectsForUser(db *gorm.DB, userID string) ([]Project, error) {
	var projects []Project
	err := db.
		Joins("JOIN memberships ON memberships.project_id = projects.id").
		Where("memberships.user_id = ?", userID).
		Order("projects.id").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// EnabledSSOMethods returns enabled methods in display order
func EnabledSSOMethods(db *gorm.DB) ([]SSOMethod, error) {
	var methods []SSOMethod
	if err := db.Where("enabled = ?", true).Order("position, name").Find(&methods).Error; err != nil {
		return nil, fmt.Errorf("failed to list SSO methods: %w", err)
	}
	return methods, nil
}

// UpsertSSOUser finds the user by username or creates one, refreshing the email
// reported by the identity provider
func UpsertSSOUser(db *gorm.DB, username, email string) (*User, error) {
	user, err := FindUserByUsername(db, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &User{Username: username, Email: email}
		if err := db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if email != "" && email != user.Email {
		user.Email = email
		if err := db.Model(user).Update("email", email).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return user, nil
}

// RevokeSession marks a token id as logged out. Revoking twice is a no-op.
func RevokeSession(db *gorm.DB, tokenID, userID string, expiresAt time.Time) error {
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&RevokedSession{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the token id was logged out
func IsSessionRevoked(db *gorm.DB, tokenID string) (bool, error) {
	var count int64
	if err := db.Model(&RevokedSession{}).Where("token_id = ?", tokenID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check revoked session: %w", err)
	}
	return count > 0, nil
}

// PruneRevokedSessions deletes revocations whose token expired before now.
// Expired tokens fail validation on their own, so the rows are no longer needed.
func PruneRevokedSessions(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Where("expires_at < ?", now).Delete(&RevokedSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune revoked sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
