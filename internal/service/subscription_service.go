package service

import (
	"context"

	"intelliblog/internal/models"
	"intelliblog/internal/repository"
)

type SubscriptionService struct {
	subRepo  repository.SubscriptionRepository
	userRepo repository.UserRepository
}

func NewSubscriptionService(subRepo repository.SubscriptionRepository, userRepo repository.UserRepository) *SubscriptionService {
	return &SubscriptionService{subRepo: subRepo, userRepo: userRepo}
}

// Subscribe makes subscriberID follow authorID. Subscribing twice is a no-op.
func (s *SubscriptionService) Subscribe(ctx context.Context, subscriberID, authorID uint) error {
	if subscriberID == authorID {
		return models.NewValidationError("You cannot subscribe to yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return err
	}

	exists, err := s.subRepo.Exists(ctx, subscriberID, authorID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if exists {
		return nil
	}
	if err := s.subRepo.Create(ctx, &models.Subscription{
		SubscriberID: subscriberID,
		AuthorID:     authorID,
	}); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, subscriberID, authorID uint) error {
	return s.subRepo.Delete(ctx, subscriberID, authorID)
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context, subscriberID uint) ([]*models.Subscription, error) {
	return s.subRepo.ListBySubscriber(ctx, subscriberID)
}

func (s *SubscriptionService) ListSubscribers(ctx context.Context, authorID uint) ([]*models.Subscription, error) {
	return s.subRepo.ListByAuthor(ctx, authorID)
}
