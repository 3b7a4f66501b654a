package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"intelliblog/internal/engine"
	"intelliblog/internal/mailer"
	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"
)

// NotificationPayload triggers the subscriber notification workflow for one
// published post.
type NotificationPayload struct {
	PostID uint `json:"postId"`
}

type postInfo struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	AuthorID   uint   `json:"authorId"`
	AuthorName string `json:"authorName"`
}

type recipient struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NotificationResult is the final result recorded on a notification job.
type NotificationResult struct {
	NotifiedSubscribers int `json:"notifiedSubscribers"`
}

// Notification builds the post/created workflow: load the post, load the
// author's subscribers, email each of them. Individual send failures are
// logged and do not fail the job.
func Notification(
	posts repository.PostRepository,
	subscriptions repository.SubscriptionRepository,
	mail mailer.Mailer,
	clientURL string,
) engine.Definition {
	return engine.Definition{
		Steps: []engine.Step{
			{
				Name: "get-post",
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var p NotificationPayload
					if err := jc.Payload(&p); err != nil {
						return nil, engine.Terminal(err)
					}
					if p.PostID == 0 {
						return nil, engine.Terminalf("notification payload requires postId")
					}
					post, err := posts.GetByID(ctx, p.PostID)
					if err != nil {
						if models.IsNotFound(err) {
							return nil, engine.Terminal(err)
						}
						return nil, err
					}
					if post.User.ID == 0 {
						return nil, engine.Terminalf(fmt.Sprintf("post %d has no author", post.ID))
					}
					return postInfo{
						ID:         post.ID,
						Title:      post.Title,
						Excerpt:    post.Excerpt,
						AuthorID:   post.UserID,
						AuthorName: post.User.Username,
					}, nil
				},
			},
			{
				Name: "get-subscribers",
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var post postInfo
					if _, err := jc.Result("get-post", &post); err != nil {
						return nil, engine.Terminal(err)
					}
					subs, err := subscriptions.ListByAuthor(ctx, post.AuthorID)
					if err != nil {
						return nil, fmt.Errorf("list subscribers of user %d: %w", post.AuthorID, err)
					}
					recipients := make([]recipient, 0, len(subs))
					for _, s := range subs {
						recipients = append(recipients, recipient{
							Email:    s.Subscriber.Email,
							Username: s.Subscriber.Username,
						})
					}
					return recipients, nil
				},
			},
			{
				Name: "send-subscriber-emails",
				Run: func(ctx context.Context, jc *engine.Context) (any, error) {
					var post postInfo
					if _, err := jc.Result("get-post", &post); err != nil {
						return nil, engine.Terminal(err)
					}
					var recipients []recipient
					if _, err := jc.Result("get-subscribers", &recipients); err != nil {
						return nil, engine.Terminal(err)
					}
					if len(recipients) == 0 {
						return map[string]int{"notified": 0}, nil
					}

					subject := fmt.Sprintf("📝 New post from %s: %s", post.AuthorName, post.Title)
					var wg sync.WaitGroup
					for _, r := range recipients {
						wg.Add(1)
						go func(r recipient) {
							defer wg.Done()
							if r.Email == "" {
								observability.EmailsTotal.WithLabelValues("notification", "error").Inc()
								observability.GlobalLogger.Warn("subscriber has no email address",
									slog.String("subscriber", r.Username),
									slog.Uint64("post_id", uint64(post.ID)))
								return
							}
							text, html := newPostEmail(r.Username, post, clientURL)
							if err := mail.Send(ctx, r.Email, subject, text, html); err != nil {
								observability.EmailsTotal.WithLabelValues("notification", "error").Inc()
								observability.GlobalLogger.Error("subscriber notification failed",
									slog.String("recipient", r.Email),
									slog.Uint64("post_id", uint64(post.ID)),
									slog.String("error", err.Error()))
								return
							}
							observability.EmailsTotal.WithLabelValues("notification", "sent").Inc()
						}(r)
					}
					wg.Wait()
					return map[string]int{"notified": len(recipients)}, nil
				},
			},
		},
		Result: func(jc *engine.Context) any {
			var sent map[string]int
			if ok, err := jc.Result("send-subscriber-emails", &sent); err != nil || !ok {
				return NotificationResult{}
			}
			return NotificationResult{NotifiedSubscribers: sent["notified"]}
		},
	}
}

func newPostEmail(username string, post postInfo, clientURL string) (text, html string) {
	link := fmt.Sprintf("%s/posts/%d", clientURL, post.ID)
	text = fmt.Sprintf(
		"Hi %s,\n\n%s just published a new post: %s\n\n%s\n\nRead it here: %s\n",
		username, post.AuthorName, post.Title, post.Excerpt, link,
	)
	html = fmt.Sprintf(
		`<div style="font-family: sans-serif; max-width: 600px;">
  <h2>%s published a new post</h2>
  <p>Hi %s,</p>
  <h3>%s</h3>
  <p>%s</p>
  <p><a href="%s">Read the full post</a></p>
</div>`,
		post.AuthorName, username, post.Title, post.Excerpt, link,
	)
	return text, html
}
