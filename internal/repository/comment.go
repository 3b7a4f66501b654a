package repository

import (
	"context"

	"intelliblog/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	// ListRecentByAuthor returns the author's newest comments on a post,
	// excluding excludeID when non-zero. Used by the anti-spam gate.
	ListRecentByAuthor(ctx context.Context, authorID, postID, excludeID uint, limit int) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	// Delete removes a comment. Deleting an id that no longer exists is a
	// no-op, which the moderation workflow relies on for retry safety.
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(
	ctx context.Context,
	postID uint,
	limit, offset int,
) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListRecentByAuthor(
	ctx context.Context,
	authorID, postID, excludeID uint,
	limit int,
) ([]*models.Comment, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", authorID, postID).
		Order("created_at desc").
		Limit(limit)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var comments []*models.Comment
	err := q.Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}
