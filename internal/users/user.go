package users

import (
	"strings"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
)

// User is the authoritative profile record. Other components read Snapshots of it.
type User struct {
	ID               string    `gorm:"column:user_id;primaryKey;size:190;not null" json:"id"`
	DisplayName      string    `gorm:"column:display_name;size:320;not null" json:"name"`
	Email            string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	CredentialSecret string    `gorm:"column:credential_secret;size:512;not null" json:"-"`
	Bio              string    `gorm:"column:bio;size:1024" json:"bio"`
	AvatarURL        string    `gorm:"column:avatar_url;size:512" json:"profilePicture"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// Snapshot returns the author fields attached to comments and uploads.
func (u User) Snapshot() memes.Author {
	return memes.Author{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(normalize(value))
}
