package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"intelliblog/internal/cache"
	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"
	"intelliblog/internal/workflows"
)

const postCacheTTL = 5 * time.Minute

type PostService struct {
	postRepo   repository.PostRepository
	dispatcher Dispatcher
}

type CreatePostInput struct {
	UserID  uint
	Title   string
	Content string
	Excerpt string
	Publish bool
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   string
	Content string
	Excerpt string
}

func NewPostService(postRepo repository.PostRepository, dispatcher Dispatcher) *PostService {
	return &PostService{postRepo: postRepo, dispatcher: dispatcher}
}

func (s *PostService) CreatePost(ctx context.Context, input CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" {
		return nil, models.NewValidationError("Post title is required")
	}
	if content == "" {
		return nil, models.NewValidationError("Post content is required")
	}

	post := &models.Post{
		Title:     title,
		Content:   content,
		Excerpt:   excerptOrDefault(input.Excerpt, content),
		UserID:    input.UserID,
		Published: input.Publish,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	if post.Published {
		s.dispatchNotification(ctx, post.ID)
	}
	cache.Invalidate(ctx, "posts:list")
	return post, nil
}

// PublishPost flips an unpublished post to published and fires the subscriber
// notification workflow. Publishing an already-published post is a no-op.
func (s *PostService) PublishPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("You can only publish your own posts")
	}
	if post.Published {
		return post, nil
	}

	post.Published = true
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	s.dispatchNotification(ctx, post.ID)
	cache.Invalidate(ctx, "posts:list", postCacheKey(post.ID))
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.CacheAside(ctx, postCacheKey(id), &post, postCacheTTL, func() error {
		p, err := s.postRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.List(ctx, limit, offset)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, authorID, limit, offset)
}

func (s *PostService) UpdatePost(ctx context.Context, input UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, input.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != input.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		post.Title = title
	}
	if content := strings.TrimSpace(input.Content); content != "" {
		post.Content = content
		post.Excerpt = excerptOrDefault(input.Excerpt, content)
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	cache.Invalidate(ctx, "posts:list", postCacheKey(post.ID))
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint, isAdmin bool) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID && !isAdmin {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, "posts:list", postCacheKey(postID))
	return nil
}

func (s *PostService) dispatchNotification(ctx context.Context, postID uint) {
	jobID, err := s.dispatcher.Dispatch(ctx, workflows.EventPostCreated, workflows.NotificationPayload{
		PostID: postID,
	})
	if err != nil {
		observability.GlobalLogger.Error("failed to dispatch notification job",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()))
		return
	}
	observability.GlobalLogger.Debug("notification job dispatched",
		slog.Uint64("post_id", uint64(postID)),
		slog.String("job_id", jobID))
}

func postCacheKey(id uint) string {
	return fmt.Sprintf("post:%d", id)
}

func excerptOrDefault(excerpt, content string) string {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt != "" {
		return excerpt
	}
	runes := []rune(content)
	if len(runes) <= 200 {
		return content
	}
	return string(runes[:200]) + "…"
}
