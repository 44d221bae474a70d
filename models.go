package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileField is a profile column that can be used for lookups
type ProfileField string

const (
	ProfileFieldEmail    ProfileField = "email"
	ProfileFieldPhone    ProfileField = "phone"
	ProfileFieldUsername ProfileField = "username"
)

// Valid reports if f is one of the lookup columns
func (f ProfileField) Valid() bool {
	switch f {
	case ProfileFieldEmail, ProfileFieldPhone, ProfileFieldUsername:
		return true
	}
	return false
}

// Label is the human readable name used in availability messages
func (f ProfileField) Label() string {
	switch f {
	case ProfileFieldEmail:
		return "email address"
	case ProfileFieldPhone:
		return "phone number"
	default:
		return string(f)
	}
}

// Profile is the public record of an account
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Username  string     `bun:"username,notnull,unique" json:"username"`
	Name      string     `bun:"name,notnull" json:"name"`
	Bio       string     `bun:"bio" json:"bio,omitempty"`
	Avatar    string     `bun:"avatar" json:"avatar,omitempty"`
	Email     string     `bun:"email" json:"email,omitempty"`
	Phone     string     `bun:"phone" json:"phone,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccountSettings holds per profile preferences, one row per profile
type AccountSettings struct {
	bun.BaseModel `bun:"table:account_settings,alias:s"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	ProfileID uuid.UUID  `bun:"profile_id,notnull,unique,type:uuid" json:"profile_id"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
