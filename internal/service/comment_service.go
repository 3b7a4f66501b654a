// Package service contains the business logic sitting between HTTP handlers
// and repositories.
package service

import (
	"context"
	"log/slog"
	"strings"

	"intelliblog/internal/antispam"
	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"
	"intelliblog/internal/workflows"
)

// Dispatcher enqueues an event for asynchronous processing. Satisfied by
// *engine.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, payload any) (string, error)
}

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	gate        *antispam.Gate
	dispatcher  Dispatcher
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	gate *antispam.Gate,
	dispatcher Dispatcher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		gate:        gate,
		dispatcher:  dispatcher,
	}
}

// CreateComment admits the comment through the anti-spam gate, persists it,
// and fires the moderation workflow. The comment is visible immediately;
// moderation may remove it later.
func (s *CommentService) CreateComment(ctx context.Context, input CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if len(content) > 5000 {
		return nil, models.NewValidationError("Comment content must be at most 5000 characters")
	}
	if _, err := s.postRepo.GetByID(ctx, input.PostID); err != nil {
		return nil, err
	}

	if err := s.gate.Admit(ctx, antispam.Request{
		AuthorID: input.UserID,
		PostID:   input.PostID,
		Content:  content,
	}); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		UserID:  input.UserID,
		PostID:  input.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	s.dispatchModeration(ctx, comment)
	return comment, nil
}

// UpdateComment re-admits the edited text through the gate. The comment being
// edited is excluded from the duplicate window and its own UpdatedAt anchors
// the rate limit, so editing is not punished as re-posting.
func (s *CommentService) UpdateComment(ctx context.Context, input UpdateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}

	comment, err := s.commentRepo.GetByID(ctx, input.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != input.UserID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}

	if err := s.gate.Admit(ctx, antispam.Request{
		AuthorID:         input.UserID,
		PostID:           comment.PostID,
		Content:          content,
		ExcludeCommentID: comment.ID,
		LastActivity:     comment.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	// Edited text re-enters moderation like a fresh comment.
	s.dispatchModeration(ctx, comment)
	return comment, nil
}

func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, id)
}

func (s *CommentService) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, limit, offset)
}

func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint, isAdmin bool) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID && !isAdmin {
		return models.NewForbiddenError("You can only delete your own comments")
	}
	return s.commentRepo.Delete(ctx, commentID)
}

// dispatchModeration is fire-and-forget: a dispatch failure is logged, never
// surfaced to the commenter.
func (s *CommentService) dispatchModeration(ctx context.Context, comment *models.Comment) {
	jobID, err := s.dispatcher.Dispatch(ctx, workflows.EventCommentModerate, workflows.ModerationPayload{
		CommentID:   comment.ID,
		CommentText: comment.Content,
	})
	if err != nil {
		observability.GlobalLogger.Error("failed to dispatch moderation job",
			slog.Uint64("comment_id", uint64(comment.ID)),
			slog.String("error", err.Error()))
		return
	}
	observability.GlobalLogger.Debug("moderation job dispatched",
		slog.Uint64("comment_id", uint64(comment.ID)),
		slog.String("job_id", jobID))
}
