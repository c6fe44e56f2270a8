package lessons

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

var ErrNotEnrolled = apperr.Forbiddenf("enroll in the course to track progress")

type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
}

// Ledger stores completion per (user, lesson) pair instead of on the shared Lesson row.
type Ledger struct {
	DB   *gorm.DB
	Gate EnrollmentChecker
}

func NewLedger(db *gorm.DB, gate EnrollmentChecker) *Ledger {
	return &Ledger{DB: db, Gate: gate}
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// MarkCompleted rejects a lesson that belongs to a course other than courseID.
func (l *Ledger) MarkCompleted(ctx context.Context, userID, courseID, lessonID uint) error {
	if userID == 0 {
		return apperr.Unauthorizedf("login required")
	}
	var lesson models.Lesson
	if err := l.DB.WithContext(ctx).First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("lesson %d not found", lessonID)
		}
		return fmt.Errorf("load lesson: %w", err)
	}
	if lesson.CourseID != courseID {
		return apperr.NotFoundf("lesson %d not found in course %d", lessonID, courseID)
	}
	enrolled, err := l.Gate.IsEnrolled(ctx, userID, lesson.CourseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	completion := models.LessonCompletion{
		UserID:      userID,
		LessonID:    lessonID,
		CourseID:    lesson.CourseID,
		CompletedAt: time.Now(),
	}
	err = l.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoNothing: true,
		}).
		Create(&completion).Error
	if err != nil {
		return fmt.Errorf("save completion: %w", err)
	}
	return nil
}

func (l *Ledger) CompletedLessonIDs(ctx context.Context, userID, courseID uint) (map[uint]bool, error) {
	done := make(map[uint]bool)
	if userID == 0 {
		return done, nil
	}
	var ids []uint
	err := l.DB.WithContext(ctx).Model(&models.LessonCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Pluck("lesson_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

// Progress counts completions against the lessons that still exist in the course.
func (l *Ledger) Progress(ctx context.Context, userID, courseID uint) (Progress, error) {
	var total int64
	if err := l.DB.WithContext(ctx).Model(&models.Lesson{}).
		Where("course_id = ?", courseID).Count(&total).Error; err != nil {
		return Progress{}, fmt.Errorf("count lessons: %w", err)
	}
	p := Progress{Total: int(total)}
	if userID == 0 {
		return p, nil
	}
	var completed int64
	err := l.DB.WithContext(ctx).Model(&models.LessonCompletion{}).
		Joins("JOIN lessons ON lessons.id = lesson_completions.lesson_id AND lessons.deleted_at IS NULL").
		Where("lesson_completions.user_id = ? AND lesson_completions.course_id = ?", userID, courseID).
		Count(&completed).Error
	if err != nil {
		return Progress{}, fmt.Errorf("count completions: %w", err)
	}
	p.Completed = int(completed)
	return p, nil
}
