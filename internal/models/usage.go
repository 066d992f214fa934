package models

import (
	"time"
)

// UserUsage tracks per-user generation credits and pro entitlement.
// Records are created lazily: on a user's first quota check, or on the
// first Gumroad event referencing an email we have never seen.
type UserUsage struct {
	ID         uint   `gorm:"column:id;primaryKey" json:"-"`
	UserID     string `gorm:"column:user_id;uniqueIndex;size:64;not null" json:"user_id"`
	Email      string `gorm:"column:email;size:255;index" json:"email"`
	UsageCount int    `gorm:"column:usage_count;default:0" json:"usage_count"`
	IsPro      bool   `gorm:"column:is_pro;default:false" json:"is_pro"`

	// Set by the subscription reconciler when Gumroad supplies them
	GumroadSubscriptionID string `gorm:"column:gumroad_subscription_id;size:255" json:"gumroad_subscription_id,omitempty"`
	GumroadLicenseKey     string `gorm:"column:gumroad_license_key;size:255" json:"gumroad_license_key,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserUsage) TableName() string {
	return "user_usage"
}

// ContentHistory is an append-only log of generated content. Writes are
// best-effort and never block the generation response.
type ContentHistory struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID           string    `gorm:"column:user_id;size:64;index;not null" json:"user_id"`
	RepoURL          string    `gorm:"column:repo_url;size:500" json:"repo_url"`
	Platform         string    `gorm:"column:platform;size:50" json:"platform"`
	ToneUsed         string    `gorm:"column:tone_used;size:50" json:"tone_used"`
	GeneratedContent string    `gorm:"column:generated_content;type:text" json:"generated_content"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ContentHistory) TableName() string {
	return "content_history"
}
