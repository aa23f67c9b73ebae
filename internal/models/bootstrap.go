package models

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orgpulse/orgpulse/internal/auth"
	"github.com/orgpulse/orgpulse/internal/config"
)

// SyncBootstrap makes the database match the declared users, projects and SSO
// methods. Users and projects not declared are left alone; declared projects
// get exactly the declared members; undeclared SSO methods are disabled.
func SyncBootstrap(db *gorm.DB, b *config.Bootstrap, log zerolog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		userIDs := make(map[string]string, len(b.Users))
		for _, u := range b.Users {
			id, err := syncUser(tx, u)
			if err != nil {
				return err
			}
			userIDs[u.Username] = id
		}

		for _, p := range b.Projects {
			if err := syncProject(tx, p, userIDs); err != nil {
				return err
			}
		}

		if err := syncSSOMethods(tx, b.SSOMethods); err != nil {
			return err
		}

		log.Info().
			Int("users", len(b.Users)).
			Int("projects", len(b.Projects)).
			Int("sso_methods", len(b.SSOMethods)).
			Msg("Bootstrap synced")
		return nil
	})
}

func syncUser(tx *gorm.DB, u config.BootstrapUser) (string, error) {
	user, err := FindUserByUsername(tx, u.Username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to find user '%s': %w", u.Username, err)
	}
	if user == nil {
		user = &User{Username: u.Username}
	}

	user.Email = u.Email
	user.Avatar = u.Avatar
	// Only rehash when the password changed so restarts keep the stored hash
	if u.Password != "" && !auth.CheckPassword(user.PasswordHash, u.Password) {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return "", err
		}
		user.PasswordHash = hash
	}

	if err := tx.Save(user).Error; err != nil {
		return "", fmt.Errorf("failed to save user '%s': %w", u.Username, err)
	}
	return user.ID, nil
}

func syncProject(tx *gorm.DB, p config.BootstrapProject, userIDs map[string]string) error {
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}
	if err := tx.Clauses(upsert).Create(&Project{ID: p.ID, Name: p.Name}).Error; err != nil {
		return fmt.Errorf("failed to save project %d: %w", p.ID, err)
	}

	members := make([]string, 0, len(p.Members))
	for _, username := range p.Members {
		id, ok := userIDs[username]
		if !ok {
			user, err := FindUserByUsername(tx, username)
			if err != nil {
				return fmt.Errorf("project %d member '%s': %w", p.ID, username, err)
			}
			id = user.ID
		}
		members = append(members, id)
	}

	remove := tx.Where("project_id = ?", p.ID)
	if len(members) > 0 {
		remove = remove.Where("user_id NOT IN ?", members)
	}
	if err := remove.Delete(&Membership{}).Error; err != nil {
		return fmt.Errorf("failed to prune members of project %d: %w", p.ID, err)
	}

	for _, userID := range members {
		var count int64
		if err := tx.Model(&Membership{}).Where("project_id = ? AND user_id = ?", p.ID, userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&Membership{UserID: userID, ProjectID: p.ID}).Error; err != nil {
			return fmt.Errorf("failed to add member to project %d: %w", p.ID, err)
		}
	}
	return nil
}

func syncSSOMethods(tx *gorm.DB, declared []config.BootstrapSSOMethod) error {
	names := make([]string, 0, len(declared))
	for i, m := range declared {
		names = append(names, m.Name)

		var method SSOMethod
		err := tx.Where("name = ?", m.Name).First(&method).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find SSO method '%s': %w", m.Name, err)
		}
		method.Name = m.Name
		method.URL = m.URL
		method.Enabled = m.IsEnabled()
		method.Position = i
		if err := tx.Save(&method).Error; err != nil {
			return fmt.Errorf("failed to save SSO method '%s': %w", m.Name, err)
		}
	}

	disable := tx.Model(&SSOMethod{}).Where("enabled = ?", true)
	if len(names) > 0 {
		disable = disable.Where("name NOT IN ?", names)
	}
	if err := disable.Update("enabled", false).Error; err != nil {
		return fmt.Errorf("failed to disable undeclared SSO methods: %w", err)
	}
	return nil
}
