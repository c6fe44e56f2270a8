package usercour

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/dbtest"
	"edu-go/pkg/kfka"
	"edu-go/pkg/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []kfka.Event
}

func (r *recorder) Publish(_ context.Context, e kfka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func setup(t *testing.T) (*Gate, *recorder, models.Course) {
	db := dbtest.Open(t)
	course := models.Course{Title: "Go basics", TeacherID: 1}
	require.NoError(t, db.Create(&course).Error)
	rec := &recorder{}
	return NewGate(db, rec, nil), rec, course
}

func TestIsEnrolledVisibleImmediately(t *testing.T) {
	g, rec, course := setup(t)
	ctx := context.Background()

	ok, err := g.IsEnrolled(ctx, 5, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Enroll(ctx, 5, course.ID)
	require.NoError(t, err)

	ok, err = g.IsEnrolled(ctx, 5, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, rec.events, 1)
	assert.Equal(t, kfka.EnrollmentCreated, rec.events[0].Type)
	assert.Equal(t, course.ID, rec.events[0].CourseID)
}

func TestEnrollTwiceRejected(t *testing.T) {
	g, _, course := setup(t)
	ctx := context.Background()

	_, err := g.Enroll(ctx, 5, course.ID)
	require.NoError(t, err)
	_, err = g.Enroll(ctx, 5, course.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	var count int64
	g.DB.Model(&models.Enrollment{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEnrollLosingInsertRaceIsAlreadyEnrolled(t *testing.T) {
	g, rec, course := setup(t)
	ctx := context.Background()

	// A concurrent request commits the same enrollment after the IsEnrolled check
	// and before this insert runs. Without the default transaction the competing row
	// outlives the failed insert, as it would when committed by another request.
	g.DB = g.DB.Session(&gorm.Session{SkipDefaultTransaction: true})
	raced := false
	err := g.DB.Callback().Create().Before("gorm:create").Register("test:concurrent_enroll", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "enrollments" {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO enrollments (user_id, course_id, created_at) VALUES (?, ?, ?)", 5, course.ID, time.Now())
	})
	require.NoError(t, err)

	_, err = g.Enroll(ctx, 5, course.ID)
	require.True(t, raced)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, rec.events)

	var count int64
	require.NoError(t, g.DB.Model(&models.Enrollment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnrollValidation(t *testing.T) {
	g, _, course := setup(t)
	ctx := context.Background()

	_, err := g.Enroll(ctx, 0, course.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = g.Enroll(ctx, 5, course.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAnonymousIsNeverEnrolled(t *testing.T) {
	g, _, course := setup(t)
	ok, err := g.IsEnrolled(context.Background(), 0, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnenroll(t *testing.T) {
	g, _, course := setup(t)
	ctx := context.Background()

	_, err := g.Enroll(ctx, 5, course.ID)
	require.NoError(t, err)
	require.NoError(t, g.Unenroll(ctx, 5, course.ID))

	ok, err := g.IsEnrolled(ctx, 5, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, g.Unenroll(ctx, 5, course.ID), apperr.ErrNotFound)
}

func TestEnrollments(t *testing.T) {
	g, _, course := setup(t)
	ctx := context.Background()
	other := models.Course{Title: "Rust"}
	require.NoError(t, g.DB.Create(&other).Error)

	_, err := g.Enroll(ctx, 5, course.ID)
	require.NoError(t, err)

	courses, err := g.Enrollments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Go basics", courses[0].Title)
}
