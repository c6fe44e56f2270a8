package courses

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"strings"
)

var ErrDuplicateTitle = apperr.Invalid("a course with this title already exists")

type Indexer interface {
	IndexCourse(ctx context.Context, course models.Course) error
	DeleteCourse(ctx context.Context, id uint) error
}

// Catalog answers structural queries. It returns every material regardless of the
// downloadable flag; combining that flag with enrollment is left to the caller.
type Catalog struct {
	DB    *gorm.DB
	Index Indexer
	Log   *logger.Logger
}

func NewCatalog(db *gorm.DB, index Indexer, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{DB: db, Index: index, Log: log}
}

func (c *Catalog) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := c.DB.WithContext(ctx).Order("id").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// GetCourse returns nil without error when the id is unknown.
func (c *Catalog) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := c.DB.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", id, err)
	}
	return &course, nil
}

func (c *Catalog) GetSections(ctx context.Context, courseID uint) ([]models.CourseSection, error) {
	var sections []models.CourseSection
	err := c.DB.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("position, id")
		}).
		Where("course_id = ?", courseID).
		Order("position, id").
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	return sections, nil
}

func (c *Catalog) GetMaterials(ctx context.Context, courseID uint) ([]models.CourseMaterial, error) {
	var materials []models.CourseMaterial
	err := c.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id").
		Find(&materials).Error
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	return materials, nil
}

type CourseInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	TeacherID   uint   `json:"teacher_id"`
}

func (c *Catalog) CreateCourse(ctx context.Context, actor models.User, in CourseInput) (models.Course, error) {
	if !middleware.IsStaff(actor) || actor.Status != models.Active {
		return models.Course{}, apperr.Forbiddenf("only active teachers and admins can create courses")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Course{}, apperr.Invalid("title is required")
	}
	if in.Price < 0 {
		return models.Course{}, apperr.Invalid("price must not be negative")
	}
	teacherID := actor.ID
	if actor.Role == models.Admin && in.TeacherID != 0 {
		teacherID = in.TeacherID
	}
	course := models.Course{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		TeacherID:   teacherID,
	}
	var dup int64
	if err := c.DB.WithContext(ctx).Model(&models.Course{}).Where("title = ?", course.Title).Count(&dup).Error; err != nil {
		return models.Course{}, fmt.Errorf("check course title: %w", err)
	}
	if dup > 0 {
		return models.Course{}, ErrDuplicateTitle
	}
	if err := c.DB.WithContext(ctx).Create(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Course{}, ErrDuplicateTitle
		}
		return models.Course{}, fmt.Errorf("create course: %w", err)
	}
	if c.Index != nil {
		if err := c.Index.IndexCourse(ctx, course); err != nil {
			c.Log.Warn("index course", "course_id", course.ID, "error", err)
		}
	}
	return course, nil
}

func (c *Catalog) editable(ctx context.Context, actor models.User, courseID uint) (*models.Course, error) {
	course, err := c.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, apperr.NotFoundf("course not found")
	}
	switch {
	case actor.Role == models.Admin:
	case actor.Role == models.Teacher && actor.Status == models.Active && course.TeacherID == actor.ID:
	default:
		return nil, apperr.Forbiddenf("only the course teacher or an admin can edit this course")
	}
	return course, nil
}

// DeleteCourse soft-deletes the course and drops it from the search index.
// Enrollments and reviews stay in place.
func (c *Catalog) DeleteCourse(ctx context.Context, actor models.User, courseID uint) error {
	course, err := c.editable(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if err := c.DB.WithContext(ctx).Delete(course).Error; err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if c.Index != nil {
		if err := c.Index.DeleteCourse(ctx, courseID); err != nil {
			c.Log.Warn("unindex course", "course_id", courseID, "error", err)
		}
	}
	return nil
}

func (c *Catalog) AddSection(ctx context.Context, actor models.User, courseID uint, title string, position int) (models.CourseSection, error) {
	if _, err := c.editable(ctx, actor, courseID); err != nil {
		return models.CourseSection{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.CourseSection{}, apperr.Invalid("section title is required")
	}
	section := models.CourseSection{CourseID: courseID, Title: title, Position: position}
	if err := c.DB.WithContext(ctx).Create(&section).Error; err != nil {
		return models.CourseSection{}, fmt.Errorf("create section: %w", err)
	}
	section.Lessons = []models.Lesson{}
	return section, nil
}

type LessonInput struct {
	Title    string             `json:"title"`
	Type     models.ContentType `json:"type"`
	Duration int                `json:"duration"`
	Position int                `json:"position"`
}

func (c *Catalog) AddLesson(ctx context.Context, actor models.User, courseID, sectionID uint, in LessonInput) (models.Lesson, error) {
	if _, err := c.editable(ctx, actor, courseID); err != nil {
		return models.Lesson{}, err
	}
	var section models.CourseSection
	err := c.DB.WithContext(ctx).Where("course_id = ?", courseID).First(&section, sectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Lesson{}, apperr.NotFoundf("section not found")
	}
	if err != nil {
		return models.Lesson{}, fmt.Errorf("load section: %w", err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return models.Lesson{}, apperr.Invalid("lesson title is required")
	}
	if in.Type == "" {
		in.Type = models.Other
	}
	if !in.Type.Valid() {
		return models.Lesson{}, apperr.Invalid("unknown lesson type")
	}
	if in.Duration < 0 {
		return models.Lesson{}, apperr.Invalid("duration must not be negative")
	}
	lesson := models.Lesson{
		CourseID:  courseID,
		SectionID: sectionID,
		Title:     strings.TrimSpace(in.Title),
		Type:      in.Type,
		Duration:  in.Duration,
		Position:  in.Position,
	}
	if err := c.DB.WithContext(ctx).Create(&lesson).Error; err != nil {
		return models.Lesson{}, fmt.Errorf("create lesson: %w", err)
	}
	return lesson, nil
}

type MaterialInput struct {
	Name         string             `json:"name"`
	Size         int64              `json:"size"`
	Type         models.ContentType `json:"type"`
	Downloadable bool               `json:"downloadable"`
}

func (c *Catalog) AddMaterial(ctx context.Context, actor models.User, courseID uint, in MaterialInput) (models.CourseMaterial, error) {
	if _, err := c.editable(ctx, actor, courseID); err != nil {
		return models.CourseMaterial{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return models.CourseMaterial{}, apperr.Invalid("material name is required")
	}
	if in.Type == "" {
		in.Type = models.Other
	}
	if !in.Type.Valid() {
		return models.CourseMaterial{}, apperr.Invalid("unknown material type")
	}
	if in.Size < 0 {
		return models.CourseMaterial{}, apperr.Invalid("size must not be negative")
	}
	material := models.CourseMaterial{
		CourseID:     courseID,
		Name:         strings.TrimSpace(in.Name),
		Size:         in.Size,
		Type:         in.Type,
		Downloadable: in.Downloadable,
	}
	if err := c.DB.WithContext(ctx).Create(&material).Error; err != nil {
		return models.CourseMaterial{}, fmt.Errorf("create material: %w", err)
	}
	return material, nil
}
