package email

import (
	"context"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/gorm"
)

type ReviewMailer interface {
	SendNewReview(to, courseName string, rating int, link string) error
}

// Notifier consumes course events. Every event is logged; review.created also mails the course teacher.
type Notifier struct {
	DB      *gorm.DB
	Mail    ReviewMailer
	BaseURL string
	Log     *logger.Logger
}

func (n *Notifier) Handle(ctx context.Context, e kfka.Event) error {
	n.Log.Info("course event", "type", e.Type, "id", e.ID, "user_id", e.UserID, "course_id", e.CourseID)
	if e.Type != kfka.ReviewCreated {
		return nil
	}
	var course models.Course
	err := n.DB.WithContext(ctx).First(&course, e.CourseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load course %d: %w", e.CourseID, err)
	}
	if course.TeacherID == 0 || course.TeacherID == e.UserID {
		return nil
	}
	var teacher models.User
	if err := n.DB.WithContext(ctx).First(&teacher, course.TeacherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load teacher %d: %w", course.TeacherID, err)
	}
	link := fmt.Sprintf("%s/api/courses/%d/reviews", n.BaseURL, course.ID)
	return n.Mail.SendNewReview(teacher.Email, course.Title, e.Rating, link)
}
