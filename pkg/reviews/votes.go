package reviews

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"sync"
	"time"
)

// VoteLedger keeps at most one helpfulness vote per (user, review).
// Helpful counts are always derived from the vote rows, never stored.
type VoteLedger struct {
	DB     *gorm.DB
	Events kfka.Publisher
	Log    *logger.Logger

	mu sync.Mutex
}

func NewVoteLedger(db *gorm.DB, events kfka.Publisher, log *logger.Logger) *VoteLedger {
	if events == nil {
		events = kfka.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &VoteLedger{DB: db, Events: events, Log: log}
}

func (v *VoteLedger) MarkHelpful(ctx context.Context, reviewID, userID uint, helpful bool) error {
	if userID == 0 {
		return apperr.Unauthorizedf("login required to vote")
	}
	var review models.CourseReview
	err := v.DB.WithContext(ctx).Select("id", "course_id").First(&review, reviewID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("review %d not found", reviewID)
	}
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}

	vote := models.ReviewVote{
		UserID:    userID,
		ReviewID:  reviewID,
		Helpful:   helpful,
		UpdatedAt: time.Now(),
	}
	v.mu.Lock()
	err = v.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "review_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"helpful", "updated_at"}),
		}).
		Create(&vote).Error
	v.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save vote: %w", err)
	}

	e := kfka.NewEvent(kfka.ReviewVoted, userID)
	e.CourseID = review.CourseID
	e.ReviewID = reviewID
	e.Helpful = &helpful
	if err := v.Events.Publish(ctx, e); err != nil {
		v.Log.Warn("publish vote event", "review_id", reviewID, "error", err)
	}
	return nil
}

// GetUserVote returns nil when the user has not voted on the review.
func (v *VoteLedger) GetUserVote(ctx context.Context, reviewID, userID uint) (*bool, error) {
	if userID == 0 {
		return nil, nil
	}
	var vote models.ReviewVote
	err := v.DB.WithContext(ctx).
		Where("user_id = ? AND review_id = ?", userID, reviewID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vote: %w", err)
	}
	helpful := vote.Helpful
	return &helpful, nil
}

// UserVotes returns the caller's votes keyed by review id, for highlighting in a list.
func (v *VoteLedger) UserVotes(ctx context.Context, userID uint, reviewIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(reviewIDs) == 0 {
		return out, nil
	}
	var votes []models.ReviewVote
	err := v.DB.WithContext(ctx).
		Where("user_id = ? AND review_id IN ?", userID, reviewIDs).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("load user votes: %w", err)
	}
	for _, vote := range votes {
		out[vote.ReviewID] = vote.Helpful
	}
	return out, nil
}

func (v *VoteLedger) HelpfulCount(ctx context.Context, reviewID uint) (int, error) {
	counts, err := v.HelpfulCounts(ctx, []uint{reviewID})
	if err != nil {
		return 0, err
	}
	return counts[reviewID], nil
}

func (v *VoteLedger) HelpfulCounts(ctx context.Context, reviewIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(reviewIDs))
	if len(reviewIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ReviewID uint
		Count    int
	}
	err := v.DB.WithContext(ctx).Model(&models.ReviewVote{}).
		Select("review_id, COUNT(*) AS count").
		Where("review_id IN ? AND helpful = ?", reviewIDs, true).
		Group("review_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count helpful votes: %w", err)
	}
	for _, r := range rows {
		counts[r.ReviewID] = r.Count
	}
	return counts, nil
}
