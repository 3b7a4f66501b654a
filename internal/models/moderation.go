package models

import (
	"strings"
	"time"
)

// Moderation levels, ordered by severity. A comment is removable only at
// ModerationStrong or ModerationExtreme.
const (
	ModerationNone    = "none"
	ModerationMild    = "mild"
	ModerationStrong  = "strong"
	ModerationExtreme = "extreme"
)

// ValidModerationLevel reports whether level is one of the four known levels.
func ValidModerationLevel(level string) bool {
	switch level {
	case ModerationNone, ModerationMild, ModerationStrong, ModerationExtreme:
		return true
	}
	return false
}

// NormalizeText reduces comment content to the canonical form used as the
// moderation ledger key: trimmed and lower-cased.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ModerationRecord is an append-only audit entry for one evaluated comment
// submission. Edits create new records keyed by the edited text; records are
// never updated in place. The anti-spam gate reads NormalizedText to block
// resubmission of text already condemned as removable.
type ModerationRecord struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	CommentID      uint   `gorm:"not null" json:"comment_id"`
	NormalizedText string `gorm:"not null;index" json:"normalized_text"`
	// UserID is the comment author at evaluation time; nullable because the
	// author account may already be gone.
	UserID           *uint     `json:"user_id,omitempty"`
	Level            string    `gorm:"not null" json:"level"`
	Explanation      string    `json:"explanation"`
	UserNotification string    `json:"user_notification,omitempty"`
	Removable        bool      `gorm:"index" json:"removable"`
	CreatedAt        time.Time `json:"created_at"`
}
