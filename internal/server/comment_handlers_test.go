package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"intelliblog/internal/antispam"
	"intelliblog/internal/models"
	"intelliblog/internal/repository"
	"intelliblog/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// noopDispatcher satisfies service.Dispatcher without running workflows.
type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, any) (string, error) {
	return "job-id", nil
}

type commentAppFixture struct {
	app  *fiber.App
	db   *gorm.DB
	user *models.User
	post *models.Post
}

func setupCommentApp(t *testing.T) *commentAppFixture {
	t.Helper()
	db := setupTestDB(t)

	commentRepo := repository.NewCommentRepository(db)
	postRepo := repository.NewPostRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	gate := antispam.NewGate(commentRepo, moderationRepo, antispam.DefaultConfig())

	s := &Server{
		db:       db,
		userRepo: repository.NewUserRepository(db),
	}
	s.commentService = service.NewCommentService(commentRepo, postRepo, gate, noopDispatcher{})

	user := &models.User{Username: "reader", Email: "reader@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	post := &models.Post{Title: "A post", Content: "body", UserID: user.ID, Published: true}
	require.NoError(t, db.Create(post).Error)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", user.ID)
		return c.Next()
	})
	app.Get("/api/posts/:id/comments", s.GetComments)
	app.Post("/api/posts/:id/comments", s.CreateComment)
	app.Put("/api/posts/:id/comments/:commentId", s.UpdateComment)
	app.Delete("/api/posts/:id/comments/:commentId", s.DeleteComment)

	return &commentAppFixture{app: app, db: db, user: user, post: post}
}

func (f *commentAppFixture) commentsPath() string {
	return "/api/posts/1/comments"
}

func TestCreateComment_Success(t *testing.T) {
	f := setupCommentApp(t)

	resp := postJSON(t, f.app, f.commentsPath(), fiber.Map{"content": "Nice write-up!"})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var comment models.Comment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&comment))
	assert.Equal(t, "Nice write-up!", comment.Content)
	assert.Equal(t, f.user.ID, comment.UserID)
}

func TestCreateComment_CondemnedContentIsForbidden(t *testing.T) {
	f := setupCommentApp(t)
	require.NoError(t, f.db.Create(&models.ModerationRecord{
		CommentID:      1,
		NormalizedText: models.NormalizeText("You are an idiot."),
		Level:          models.ModerationStrong,
		Removable:      true,
	}).Error)

	resp := postJSON(t, f.app, f.commentsPath(), fiber.Map{"content": "You are an idiot."})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, antispam.ReasonContentBlocked, body.Code)
}

func TestCreateComment_RapidRepostIsThrottled(t *testing.T) {
	f := setupCommentApp(t)

	first := postJSON(t, f.app, f.commentsPath(), fiber.Map{"content": "First comment."})
	require.Equal(t, http.StatusCreated, first.StatusCode)
	_ = first.Body.Close()

	second := postJSON(t, f.app, f.commentsPath(), fiber.Map{"content": "Second comment right away."})
	defer func() { _ = second.Body.Close() }()

	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	assert.Equal(t, antispam.ReasonTooFrequent, body.Code)
}

func TestCreateComment_MissingPost(t *testing.T) {
	f := setupCommentApp(t)

	resp := postJSON(t, f.app, "/api/posts/9999/comments", fiber.Map{"content": "Hello?"})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetComments_ReturnsPostComments(t *testing.T) {
	f := setupCommentApp(t)
	require.NoError(t, f.db.Create(&models.Comment{
		Content: "Seeded comment", UserID: f.user.ID, PostID: f.post.ID,
	}).Error)

	req := httptest.NewRequest(http.MethodGet, f.commentsPath(), nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Comments []models.Comment `json:"comments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "Seeded comment", body.Comments[0].Content)
}

func TestDeleteComment_OwnerCanDelete(t *testing.T) {
	f := setupCommentApp(t)
	comment := &models.Comment{Content: "Going away", UserID: f.user.ID, PostID: f.post.ID}
	require.NoError(t, f.db.Create(comment).Error)

	req := httptest.NewRequest(http.MethodDelete, "/api/posts/1/comments/1", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	err = f.db.First(&models.Comment{}, comment.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
