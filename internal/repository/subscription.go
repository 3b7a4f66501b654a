package repository

import (
	"context"

	"intelliblog/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository defines interface for subscription operations
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, subscriberID, authorID uint) error
	Exists(ctx context.Context, subscriberID, authorID uint) (bool, error)
	// ListByAuthor returns all subscriptions to the author with the
	// subscriber user preloaded, for notification fan-out.
	ListByAuthor(ctx context.Context, authorID uint) ([]*models.Subscription, error)
	ListBySubscriber(ctx context.Context, subscriberID uint) ([]*models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepository) Delete(ctx context.Context, subscriberID, authorID uint) error {
	return r.db.WithContext(ctx).
		Where("subscriber_id = ? AND author_id = ?", subscriberID, authorID).
		Delete(&models.Subscription{}).Error
}

func (r *subscriptionRepository) Exists(ctx context.Context, subscriberID, authorID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("subscriber_id = ? AND author_id = ?", subscriberID, authorID).
		Count(&count).Error
	return count > 0, err
}

func (r *subscriptionRepository) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Subscriber").
		Where("author_id = ?", authorID).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListBySubscriber(ctx context.Context, subscriberID uint) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("subscriber_id = ?", subscriberID).
		Find(&subs).Error
	return subs, err
}
