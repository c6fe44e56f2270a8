package usercour

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/gorm"
)

var ErrAlreadyEnrolled = apperr.Invalid("already enrolled in this course")

// Gate answers whether a user holds an enrollment for a course.
// It never caches: every call reads the committed enrollments table.
type Gate struct {
	DB     *gorm.DB
	Events kfka.Publisher
	Log    *logger.Logger
}

func NewGate(db *gorm.DB, events kfka.Publisher, log *logger.Logger) *Gate {
	if events == nil {
		events = kfka.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{DB: db, Events: events, Log: log}
}

func (g *Gate) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	if userID == 0 || courseID == 0 {
		return false, nil
	}
	var count int64
	err := g.DB.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return count > 0, nil
}

func (g *Gate) Enroll(ctx context.Context, userID, courseID uint) (models.Enrollment, error) {
	if userID == 0 {
		return models.Enrollment{}, apperr.Unauthorizedf("login required to enroll")
	}
	var course models.Course
	if err := g.DB.WithContext(ctx).Select("id").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrollment{}, apperr.NotFoundf("course %d not found", courseID)
		}
		return models.Enrollment{}, fmt.Errorf("load course: %w", err)
	}
	enrolled, err := g.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return models.Enrollment{}, err
	}
	if enrolled {
		return models.Enrollment{}, ErrAlreadyEnrolled
	}
	enrollment := models.Enrollment{UserID: userID, CourseID: courseID}
	if err := g.DB.WithContext(ctx).Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Enrollment{}, ErrAlreadyEnrolled
		}
		return models.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}

	e := kfka.NewEvent(kfka.EnrollmentCreated, userID)
	e.CourseID = courseID
	if err := g.Events.Publish(ctx, e); err != nil {
		g.Log.Warn("publish enrollment event", "user_id", userID, "course_id", courseID, "error", err)
	}
	return enrollment, nil
}

// Unenroll removes the enrollment. Reviews written while enrolled keep their verified flag.
func (g *Gate) Unenroll(ctx context.Context, userID, courseID uint) error {
	res := g.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.Enrollment{})
	if res.Error != nil {
		return fmt.Errorf("delete enrollment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("enrollment not found")
	}
	return nil
}

// Enrollments lists the courses userID is enrolled in, newest enrollment first.
func (g *Gate) Enrollments(ctx context.Context, userID uint) ([]models.Course, error) {
	var courses []models.Course
	err := g.DB.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Order("enrollments.created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courses, nil
}
