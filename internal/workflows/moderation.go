// Package workflows defines the job engine workflows: the comment moderation
// pipeline and the subscriber notification pipeline. Each workflow is an
// ordered set of checkpointed steps; side-effecting steps are written to be
// idempotent so a replayed job never repeats completed work.
package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"intelliblog/internal/classifier"
	"intelliblog/internal/engine"
	"intelliblog/internal/mailer"
	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"
)

// Event names dispatched to the engine.
const (
	EventCommentModerate = "comment/moderate"
	EventPostCreated     = "post/created"
)

// ModerationPayload triggers the moderation workflow for one comment.
type ModerationPayload struct {
	CommentID   uint   `json:"commentId"`
	CommentText string `json:"commentText"`
}

// commentInfo is the checkpointed slice of the comment the later steps need.
type commentInfo struct {
	ID             uint   `json:"id"`
	UserID         uint   `json:"userId"`
	AuthorEmail    string `json:"authorEmail"`
	AuthorUsername string `json:"authorUsername"`
}

// ModerationResult is the final result recorded on a moderation job.
type ModerationResult struct {
	Removable        bool   `json:"removable"`
	Level            string `json:"level"`
	Explanation      string `json:"explanation"`
	UserNotification string `json:"userNotification,omitempty"`
}

// Moderation builds the comment/moderate workflow. The classify step is never
// checkpointed: the verdict drives branching and must be present on every run,
// including replays of partially completed jobs.
func Moderation(
	comments repository.CommentRepository,
	moderation repository.ModerationRepository,
	cls classifier.Classifier,
	mail mailer.Mailer,
) engine.Definition {
	readVerdict := func(jc *engine.Context) (*classifier.Verdict, error) {
		var v classifier.Verdict
		ok, err := jc.Result("classify", &v)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, engine.Terminalf("classify step produced no verdict")
		}
		return &v, nil
	}
	removable := func(jc *engine.Context) bool {
		v, err := readVerdict(jc)
		return err == nil && v.Removable
	}

	return engine.Definition{
		Steps: []engine.Step{
			{
				Name:  "classify",
				Fresh: true,
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var p ModerationPayload
					if err := jc.Payload(&p); err != nil {
						return nil, engine.Terminal(err)
					}
					if p.CommentID == 0 || strings.TrimSpace(p.CommentText) == "" {
						return nil, engine.Terminalf("moderation payload requires commentId and commentText")
					}
					verdict, err := cls.Classify(ctx, p.CommentText)
					if err != nil {
						return nil, fmt.Errorf("classify comment %d: %w", p.CommentID, err)
					}
					return verdict, nil
				},
			},
			{
				Name: "get-comment",
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var p ModerationPayload
					if err := jc.Payload(&p); err != nil {
						return nil, engine.Terminal(err)
					}
					comment, err := comments.GetByID(ctx, p.CommentID)
					if err != nil {
						if models.IsNotFound(err) {
							return nil, engine.Terminal(err)
						}
						return nil, err
					}
					return commentInfo{
						ID:             comment.ID,
						UserID:         comment.UserID,
						AuthorEmail:    comment.User.Email,
						AuthorUsername: comment.User.Username,
					}, nil
				},
			},
			{
				Name: "delete-comment",
				When: removable,
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var info commentInfo
					if _, err := jc.Result("get-comment", &info); err != nil {
						return nil, engine.Terminal(err)
					}
					// Delete is a no-op when the row is already gone, so a
					// replay of this step cannot fail.
					if err := comments.Delete(ctx, info.ID); err != nil {
						return nil, fmt.Errorf("delete comment %d: %w", info.ID, err)
					}
					return map[string]bool{"deleted": true}, nil
				},
			},
			{
				Name: "send-warning-email",
				When: removable,
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					verdict, err := readVerdict(jc)
					if err != nil {
						return nil, err
					}
					var info commentInfo
					if _, err := jc.Result("get-comment", &info); err != nil {
						return nil, engine.Terminal(err)
					}
					if info.AuthorEmail == "" {
						observability.GlobalLogger.Warn("comment author has no email; skipping warning",
							slog.Uint64("comment_id", uint64(info.ID)))
						return map[string]bool{"sent": false}, nil
					}
					text, html := warningEmail(info.AuthorUsername, verdict)
					if err := mail.Send(ctx, info.AuthorEmail, "⚠️ Your comment has been removed", text, html); err != nil {
						observability.EmailsTotal.WithLabelValues("moderation", "error").Inc()
						return nil, fmt.Errorf("send warning to %s: %w", info.AuthorEmail, err)
					}
					observability.EmailsTotal.WithLabelValues("moderation", "sent").Inc()
					return map[string]bool{"sent": true}, nil
				},
			},
			{
				Name: "save-moderation-record",
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					verdict, err := readVerdict(jc)
					if err != nil {
						return nil, err
					}
					var p ModerationPayload
					if err := jc.Payload(&p); err != nil {
						return nil, engine.Terminal(err)
					}
					var info commentInfo
					if _, err := jc.Result("get-comment", &info); err != nil {
						return nil, engine.Terminal(err)
					}
					record := &models.ModerationRecord{
						CommentID:        info.ID,
						NormalizedText:   models.NormalizeText(p.CommentText),
						UserID:           &info.UserID,
						Level:            verdict.Level,
						Explanation:      verdict.Explanation,
						UserNotification: verdict.UserNotification,
						Removable:        verdict.Removable,
					}
					if err := moderation.Create(ctx, record); err != nil {
						return nil, fmt.Errorf("save moderation record for comment %d: %w", info.ID, err)
					}
					return map[string]uint{"recordId": record.ID}, nil
				},
			},
		},
		Result: func(jc *engine.Context) any {
			v, err := readVerdict(jc)
			if err != nil {
				return nil
			}
			return ModerationResult{
				Removable:        v.Removable,
				Level:            v.Level,
				Explanation:      v.Explanation,
				UserNotification: v.UserNotification,
			}
		},
	}
}

func warningEmail(username string, v *classifier.Verdict) (text, html string) {
	notice := v.UserNotification
	if notice == "" {
		notice = "Your comment violated our community guidelines and has been removed."
	}
	text = fmt.Sprintf(
		"Hi %s,\n\nYour recent comment was removed by our moderation system.\n\n%s\n\nReason: %s\n\nPlease keep the discussion respectful.\n",
		username, notice, v.Explanation,
	)
	html = fmt.Sprintf(
		`<div style="font-family: sans-serif; max-width: 600px;">
  <h2>Your comment has been removed</h2>
  <p>Hi %s,</p>
  <p>Your recent comment was removed by our moderation system.</p>
  <blockquote style="border-left: 3px solid #ccc; padding-left: 12px; color: #555;">%s</blockquote>
  <p><strong>Reason:</strong> %s</p>
  <p>Please keep the discussion respectful.</p>
</div>`,
		username, notice, v.Explanation,
	)
	return text, html
}
