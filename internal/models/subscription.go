package models

import "time"

// Subscription links a subscriber to an author whose new posts they want to
// hear about. Unique on (subscriber, author); a user cannot subscribe to
// themselves.
type Subscription struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubscriberID uint      `gorm:"not null;uniqueIndex:idx_subscriber_author" json:"subscriber_id"`
	AuthorID     uint      `gorm:"not null;uniqueIndex:idx_subscriber_author" json:"author_id"`
	Subscriber   User      `gorm:"foreignKey:SubscriberID" json:"subscriber,omitempty"`
	Author       User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
