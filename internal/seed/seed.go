// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"intelliblog/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder builds domain entities and persists them to the database.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded data. Order matters for foreign keys.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{
		&models.JobStep{}, &models.Job{},
		&models.ModerationRecord{}, &models.Comment{},
		&models.Subscription{}, &models.Post{}, &models.User{},
	} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	log.Println("Database cleared")
	return nil
}

// SeedUsers creates n users. All seeded users share the password
// "password123".
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, &models.User{
			Username: fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
			Email:    gofakeit.Email(),
			Password: string(hashed),
		})
	}
	if err := s.db.Create(&users).Error; err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	log.Printf("Seeded %d users", len(users))
	return users, nil
}

// SeedPosts creates n published posts spread across the given authors with a
// realistic created_at spread over the past 90 days.
func (s *Seeder) SeedPosts(users []*models.User, n int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rand.Intn(len(users))]
		content := gofakeit.Paragraph(2, 4, 8, "\n\n")
		post := &models.Post{
			Title:     gofakeit.Sentence(6),
			Content:   content,
			Excerpt:   gofakeit.Sentence(12),
			UserID:    author.ID,
			Published: true,
		}
		daysBack := s.rand.Intn(90)
		post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
			time.Duration(s.rand.Intn(24))*time.Hour)
		posts = append(posts, post)
	}
	if err := s.db.Create(&posts).Error; err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	log.Printf("Seeded %d posts", len(posts))
	return posts, nil
}

// SeedComments scatters n comments across the given posts. Seeded comments
// bypass the anti-spam gate and moderation; they are plain rows.
func (s *Seeder) SeedComments(users []*models.User, posts []*models.Post, n int) error {
	comments := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		post := posts[s.rand.Intn(len(posts))]
		author := users[s.rand.Intn(len(users))]
		comment := &models.Comment{
			Content: gofakeit.Sentence(s.rand.Intn(15) + 3),
			UserID:  author.ID,
			PostID:  post.ID,
		}
		comment.CreatedAt = post.CreatedAt.Add(time.Duration(s.rand.Intn(72)) * time.Hour)
		comments = append(comments, comment)
	}
	if err := s.db.Create(&comments).Error; err != nil {
		return fmt.Errorf("seed comments: %w", err)
	}
	log.Printf("Seeded %d comments", len(comments))
	return nil
}

// SeedSubscriptions subscribes each user to a handful of random authors.
func (s *Seeder) SeedSubscriptions(users []*models.User, perUser int) error {
	var subs []*models.Subscription
	for _, u := range users {
		seen := map[uint]bool{u.ID: true}
		for i := 0; i < perUser; i++ {
			author := users[s.rand.Intn(len(users))]
			if seen[author.ID] {
				continue
			}
			seen[author.ID] = true
			subs = append(subs, &models.Subscription{
				SubscriberID: u.ID,
				AuthorID:     author.ID,
			})
		}
	}
	if len(subs) == 0 {
		return nil
	}
	if err := s.db.Create(&subs).Error; err != nil {
		return fmt.Errorf("seed subscriptions: %w", err)
	}
	log.Printf("Seeded %d subscriptions", len(subs))
	return nil
}
