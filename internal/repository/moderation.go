package repository

import (
	"context"

	"intelliblog/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository is the append-only verdict ledger. Records are created
// by the moderation workflow and read by the anti-spam gate; nothing updates
// or deletes them.
type ModerationRepository interface {
	Create(ctx context.Context, record *models.ModerationRecord) error
	// FindCondemned returns a record whose normalized text matches and was
	// judged removable, or nil when no such record exists.
	FindCondemned(ctx context.Context, normalizedText string) (*models.ModerationRecord, error)
	List(ctx context.Context, limit, offset int) ([]*models.ModerationRecord, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new ModerationRepository
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) Create(ctx context.Context, record *models.ModerationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *moderationRepository) FindCondemned(ctx context.Context, normalizedText string) (*models.ModerationRecord, error) {
	var record models.ModerationRecord
	err := r.db.WithContext(ctx).
		Where("normalized_text = ? AND removable = ?", normalizedText, true).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *moderationRepository) List(ctx context.Context, limit, offset int) ([]*models.ModerationRecord, error) {
	var records []*models.ModerationRecord
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}
