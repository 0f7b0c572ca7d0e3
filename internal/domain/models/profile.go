// internal/domain/models/profile.go
package models

import (
	"time"
)

// Role is the portal role stored on a profile.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleMentor      Role = "mentor"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Settings holds per-user preferences.
type Settings struct {
	Notifications bool  `bson:"notifications" json:"notifications"`
	Theme         Theme `bson:"theme" json:"theme"`
}

// DefaultSettings returns the settings given to a new profile.
func DefaultSettings() Settings {
	return Settings{Notifications: true, Theme: ThemeSystem}
}

// Profile is the application-owned record for an identity UID.
//
// NOTE:
//   - ID mirrors the identity provider UID; there is exactly one profile
//     per UID.
//   - Concurrent writers are last-write-wins; there is no version field.
type Profile struct {
	ID                 string    `bson:"_id" json:"uid"`
	Email              string    `bson:"email,omitempty" json:"email"`
	DisplayName        string    `bson:"display_name,omitempty" json:"displayName"`
	PhotoURL           string    `bson:"photo_url,omitempty" json:"photoURL"`
	Role               Role      `bson:"role" json:"role"`
	OnboardingComplete bool      `bson:"onboarding_complete" json:"onboardingComplete"`
	Settings           Settings  `bson:"settings" json:"settings"`
	CreatedAt          time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updatedAt"`
}
