package antispam

import (
	"context"
	"fmt"
	"time"

	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"
)

// Rejection reasons.
const (
	ReasonContentBlocked   = "ContentBlocked"
	ReasonDuplicateContent = "DuplicateContent"
	ReasonSimilarContent   = "SimilarContent"
	ReasonTooFrequent      = "TooFrequent"
)

// Rejection is returned when a submission fails an admission check. It is a
// user-facing error mapped to a 4xx response; no workflow is triggered for a
// rejected submission.
type Rejection struct {
	Reason  string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Config holds the gate thresholds. The defaults mirror the production
// values; they are configuration, not tuning advice.
type Config struct {
	// SimilarityThreshold rejects a comment whose similarity to any recent
	// comment exceeds this value.
	SimilarityThreshold float64
	// RecentWindow is how many of the author's newest comments on the post
	// are compared.
	RecentWindow int
	// MinInterval is the youngest a prior comment may be before another is
	// accepted on the same post.
	MinInterval time.Duration
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.8,
		RecentWindow:        5,
		MinInterval:         15 * time.Second,
	}
}

// Request describes one submission to admit.
type Request struct {
	AuthorID uint
	PostID   uint
	Content  string
	// ExcludeCommentID removes the comment being edited from the candidate
	// set. Zero for a new comment.
	ExcludeCommentID uint
	// LastActivity is the edited comment's own last-update time; the rate
	// limit compares against it when non-zero. Zero for a new comment, in
	// which case the author's newest comment on the post is used.
	LastActivity time.Time
}

// Gate is the admission predicate. It only reads; acceptance has no side
// effects beyond the checks themselves.
type Gate struct {
	comments   repository.CommentRepository
	moderation repository.ModerationRepository
	cfg        Config
	now        func() time.Time
}

// NewGate builds a Gate over the comment store and moderation ledger.
func NewGate(comments repository.CommentRepository, moderation repository.ModerationRepository, cfg Config) *Gate {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultConfig().RecentWindow
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	return &Gate{
		comments:   comments,
		moderation: moderation,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Admit runs the admission checks in order; the first failure rejects the
// submission. It must complete before the comment write is acknowledged.
func (g *Gate) Admit(ctx context.Context, req Request) error {
	normalized := models.NormalizeText(req.Content)

	// 1. Text already condemned as removable can never be re-posted,
	// regardless of author or post.
	condemned, err := g.moderation.FindCondemned(ctx, normalized)
	if err != nil {
		return fmt.Errorf("condemned-text lookup: %w", err)
	}
	if condemned != nil {
		return g.reject(ReasonContentBlocked, "Your comment contains inappropriate content and cannot be posted.")
	}

	// 2. Duplicate / similarity check against the author's recent comments
	// on this post, newest first.
	recent, err := g.comments.ListRecentByAuthor(ctx, req.AuthorID, req.PostID, req.ExcludeCommentID, g.cfg.RecentWindow)
	if err != nil {
		return fmt.Errorf("recent comments lookup: %w", err)
	}
	for _, prior := range recent {
		normalizedPrior := models.NormalizeText(prior.Content)
		if normalizedPrior == normalized {
			return g.reject(ReasonDuplicateContent, "Duplicate comment detected.")
		}
		if Similarity(normalizedPrior, normalized) > g.cfg.SimilarityThreshold {
			return g.reject(ReasonSimilarContent, "Similar comment detected.")
		}
	}

	// 3. Rate limit: reject while the reference time is younger than the
	// minimum interval; exactly at the interval is accepted.
	last := req.LastActivity
	if last.IsZero() && len(recent) > 0 {
		last = recent[0].CreatedAt
	}
	if !last.IsZero() && g.now().Sub(last) < g.cfg.MinInterval {
		return g.reject(ReasonTooFrequent, "You are commenting too frequently. Please wait.")
	}

	return nil
}

func (g *Gate) reject(reason, message string) error {
	observability.GateRejections.WithLabelValues(reason).Inc()
	return &Rejection{Reason: reason, Message: message}
}
