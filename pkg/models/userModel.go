package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"time"
)

type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
	Admin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == Student || r == Teacher || r == Admin
}

type Status string

const (
	Active    Status = "active"
	Pending   Status = "pending"
	Suspended Status = "suspended"
)

func (s Status) Valid() bool {
	return s == Active || s == Pending || s == Suspended
}

type ContentType string

const (
	Video ContentType = "video"
	PDF   ContentType = "pdf"
	Zip   ContentType = "zip"
	Other ContentType = "other"
)

// Valid reports whether t is one of the known icon tags.
func (t ContentType) Valid() bool {
	switch t {
	case Video, PDF, Zip, Other:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Name     string                      `json:"name"`
	Email    string                      `gorm:"unique;not null" json:"email"`
	Password string                      `gorm:"not null" json:"-"`
	Role     Role                        `gorm:"type:varchar(16);default:'student'" json:"role"`
	Status   Status                      `gorm:"type:varchar(16);default:'active'" json:"status"`
	Bio      string                      `json:"bio,omitempty"`
	Subjects datatypes.JSONSlice[string] `json:"subjects,omitempty"`
}

type Course struct {
	gorm.Model
	Title       string          `gorm:"unique;not null" json:"title"`
	Description string          `json:"description"`
	Category    string          `gorm:"type:varchar(100)" json:"category"`
	TeacherID   uint            `gorm:"index" json:"teacher_id"`
	Price       int64           `json:"price"`
	Sections    []CourseSection `gorm:"foreignKey:CourseID" json:"sections,omitempty"`
}

type CourseSection struct {
	gorm.Model
	CourseID uint     `gorm:"index;not null" json:"course_id"`
	Title    string   `gorm:"not null" json:"title"`
	Position int      `json:"position"`
	Lessons  []Lesson `gorm:"foreignKey:SectionID" json:"lessons"`
}

type Lesson struct {
	gorm.Model
	CourseID  uint        `gorm:"index;not null" json:"course_id"`
	SectionID uint        `gorm:"index;not null" json:"section_id"`
	Title     string      `gorm:"not null" json:"title"`
	Type      ContentType `gorm:"type:varchar(16);default:'other'" json:"type"`
	Duration  int         `json:"duration"`
	Position  int         `json:"position"`
}

// LessonCompletion is per-user state; the Lesson row itself is shared by every student.
type LessonCompletion struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_completion_user_lesson;not null" json:"user_id"`
	LessonID    uint      `gorm:"uniqueIndex:idx_completion_user_lesson;not null" json:"lesson_id"`
	CourseID    uint      `gorm:"index;not null" json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type CourseMaterial struct {
	gorm.Model
	CourseID     uint        `gorm:"index;not null" json:"course_id"`
	Name         string      `gorm:"not null" json:"name"`
	Size         int64       `json:"size"`
	Type         ContentType `gorm:"type:varchar(16);default:'other'" json:"type"`
	Downloadable bool        `json:"downloadable"`
}

type Enrollment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"user_id"`
	CourseID  uint      `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CourseReview struct {
	ID                 uint                        `gorm:"primarykey" json:"id"`
	CourseID           uint                        `gorm:"index;not null" json:"course_id"`
	UserID             uint                        `gorm:"index;not null" json:"user_id"`
	Rating             int                         `gorm:"not null" json:"rating"`
	Title              string                      `json:"title"`
	Comment            string                      `json:"comment"`
	Pros               datatypes.JSONSlice[string] `json:"pros"`
	Cons               datatypes.JSONSlice[string] `json:"cons"`
	WouldRecommend     bool                        `json:"would_recommend"`
	IsVerifiedPurchase bool                        `json:"is_verified_purchase"`
	CreatedAt          time.Time                   `json:"created_at"`
	HelpfulVotes       int                         `gorm:"-" json:"helpful_votes"`
}

type ReviewVote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_vote_user_review;not null" json:"user_id"`
	ReviewID  uint      `gorm:"uniqueIndex:idx_vote_user_review;index;not null" json:"review_id"`
	Helpful   bool      `json:"helpful"`
	UpdatedAt time.Time `json:"updated_at"`
}
