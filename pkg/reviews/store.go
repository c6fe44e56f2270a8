package reviews

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"strings"
)

type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
}

type Store struct {
	DB     *gorm.DB
	Gate   EnrollmentChecker
	Votes  *VoteLedger
	Events kfka.Publisher
	Log    *logger.Logger
}

func NewStore(db *gorm.DB, gate EnrollmentChecker, votes *VoteLedger, events kfka.Publisher, log *logger.Logger) *Store {
	if events == nil {
		events = kfka.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{DB: db, Gate: gate, Votes: votes, Events: events, Log: log}
}

type ReviewInput struct {
	CourseID       uint     `json:"-"`
	UserID         uint     `json:"-"`
	Rating         int      `json:"rating"`
	Title          string   `json:"title"`
	Comment        string   `json:"comment"`
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	WouldRecommend bool     `json:"would_recommend"`
}

func cleanList(items []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CreateReview snapshots enrollment into IsVerifiedPurchase; later enrollment
// changes never touch the stored flag.
func (s *Store) CreateReview(ctx context.Context, in ReviewInput) (models.CourseReview, error) {
	if in.UserID == 0 {
		return models.CourseReview{}, apperr.Unauthorizedf("login required to review")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return models.CourseReview{}, apperr.Invalid("rating must be between 1 and 5")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.CourseReview{}, apperr.Invalid("title is required")
	}
	var course models.Course
	err := s.DB.WithContext(ctx).Select("id").First(&course, in.CourseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CourseReview{}, apperr.NotFoundf("course not found")
	}
	if err != nil {
		return models.CourseReview{}, fmt.Errorf("load course: %w", err)
	}
	verified, err := s.Gate.IsEnrolled(ctx, in.UserID, in.CourseID)
	if err != nil {
		return models.CourseReview{}, err
	}
	review := models.CourseReview{
		CourseID:           in.CourseID,
		UserID:             in.UserID,
		Rating:             in.Rating,
		Title:              in.Title,
		Comment:            strings.TrimSpace(in.Comment),
		Pros:               cleanList(in.Pros),
		Cons:               cleanList(in.Cons),
		WouldRecommend:     in.WouldRecommend,
		IsVerifiedPurchase: verified,
	}
	if err := s.DB.WithContext(ctx).Create(&review).Error; err != nil {
		return models.CourseReview{}, fmt.Errorf("create review: %w", err)
	}

	e := kfka.NewEvent(kfka.ReviewCreated, in.UserID)
	e.CourseID = in.CourseID
	e.ReviewID = review.ID
	e.Rating = review.Rating
	if err := s.Events.Publish(ctx, e); err != nil {
		s.Log.Warn("publish review event", "review_id", review.ID, "error", err)
	}
	return review, nil
}

func (s *Store) load(ctx context.Context, courseID uint) ([]models.CourseReview, error) {
	var reviews []models.CourseReview
	if err := s.DB.WithContext(ctx).Where("course_id = ?", courseID).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	ids := make([]uint, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	counts, err := s.Votes.HelpfulCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].HelpfulVotes = counts[reviews[i].ID]
	}
	return reviews, nil
}

// GetReviews reads a fresh snapshot on every call so vote changes show up immediately.
func (s *Store) GetReviews(ctx context.Context, courseID uint, policy SortPolicy) ([]models.CourseReview, error) {
	reviews, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	SortReviews(reviews, policy)
	return reviews, nil
}

func (s *Store) GetReview(ctx context.Context, id uint) (*models.CourseReview, error) {
	var review models.CourseReview
	err := s.DB.WithContext(ctx).First(&review, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load review: %w", err)
	}
	if review.HelpfulVotes, err = s.Votes.HelpfulCount(ctx, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// CourseSummary always covers every review of the course, whatever the page shows.
func (s *Store) CourseSummary(ctx context.Context, courseID uint) (Summary, error) {
	var reviews []models.CourseReview
	err := s.DB.WithContext(ctx).
		Select("id", "rating", "would_recommend").
		Where("course_id = ?", courseID).
		Find(&reviews).Error
	if err != nil {
		return Summary{}, fmt.Errorf("load ratings: %w", err)
	}
	return Summarize(reviews), nil
}
