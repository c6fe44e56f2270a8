package routes

import (
	"bytes"
	"context"
	"edu-go/pkg/dbtest"
	"edu-go/pkg/goauth"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"edu-go/pkg/reviews"
	"edu-go/pkg/search"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type noCodes struct{}

func (noCodes) Set(context.Context, string, string, time.Duration) error { return nil }
func (noCodes) Take(context.Context, string) (string, error) {
	return "", goauth.ErrCodeNotFound
}

type noMail struct{}

func (noMail) SendCode(string, string) error { return nil }

type fixture struct {
	db      *gorm.DB
	auth    *middleware.Auth
	router  *mux.Router
	course  models.Course
	student models.User
	other   models.User
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t)
	auth := middleware.NewAuth(db, "test-secret")
	log := logger.Nop()
	accounts := &goauth.Service{DB: db, Auth: auth, Codes: noCodes{}, Mail: noMail{}, Log: log}
	h := NewHandlers(db, auth, search.NewIndex(nil), kfka.Nop{}, accounts, log)

	f := &fixture{db: db, auth: auth, router: NewRouter(h)}
	f.student = models.User{Name: "Ann", Email: "ann@example.com", Password: "x", Role: models.Student, Status: models.Active}
	f.other = models.User{Name: "Bob", Email: "bob@example.com", Password: "x", Role: models.Student, Status: models.Active}
	require.NoError(t, db.Create(&f.student).Error)
	require.NoError(t, db.Create(&f.other).Error)

	f.course = models.Course{Title: "Go in practice", Price: 4900}
	require.NoError(t, db.Create(&f.course).Error)
	section := models.CourseSection{CourseID: f.course.ID, Title: "Basics", Position: 1}
	require.NoError(t, db.Create(&section).Error)
	for i, title := range []string{"Hello", "Types"} {
		lesson := models.Lesson{CourseID: f.course.ID, SectionID: section.ID, Title: title, Position: i, Type: models.Video}
		require.NoError(t, db.Create(&lesson).Error)
	}
	require.NoError(t, db.Create(&models.CourseMaterial{CourseID: f.course.ID, Name: "slides.pdf", Type: models.PDF}).Error)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		tok, _, err := f.auth.IssueToken(user.ID, time.Hour)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: tok})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(into))
}

func TestMeAnonymousAndSignedIn(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "GET", "/api/me", nil, nil).Code)

	rec := f.do(t, "GET", "/api/me", &f.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decode(t, rec, &me)
	assert.Equal(t, f.student.ID, me.ID)
}

func TestCourseDetailsFollowEnrollment(t *testing.T) {
	f := setup(t)
	path := fmt.Sprintf("/api/courses/%d", f.course.ID)

	rec := f.do(t, "GET", path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		IsEnrolled bool `json:"is_enrolled"`
		Progress   *struct {
			Completed int `json:"completed"`
			Total     int `json:"total"`
		} `json:"progress"`
		Rating *reviews.Summary `json:"rating"`
	}
	decode(t, rec, &details)
	assert.False(t, details.IsEnrolled)
	assert.Nil(t, details.Progress)
	require.NotNil(t, details.Rating)
	assert.Equal(t, 0, details.Rating.Total)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "POST", path+"/enroll", nil, nil).Code)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", path+"/enroll", &f.student, nil).Code)

	rec = f.do(t, "GET", path, &f.student, nil)
	decode(t, rec, &details)
	assert.True(t, details.IsEnrolled)
	require.NotNil(t, details.Progress)
	assert.Equal(t, 2, details.Progress.Total)

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/courses/9999", nil, nil).Code)
}

func TestMaterialsListedForEveryone(t *testing.T) {
	f := setup(t)
	rec := f.do(t, "GET", fmt.Sprintf("/api/courses/%d/materials", f.course.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		IsEnrolled bool                    `json:"is_enrolled"`
		Materials  []models.CourseMaterial `json:"materials"`
	}
	decode(t, rec, &resp)
	assert.False(t, resp.IsEnrolled)
	require.Len(t, resp.Materials, 1)
	assert.False(t, resp.Materials[0].Downloadable)
}

func TestSearchRouteIsNotACourseID(t *testing.T) {
	f := setup(t)
	rec := f.do(t, "GET", "/api/courses/search?q=go", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []search.CourseDoc
	decode(t, rec, &docs)
	assert.Empty(t, docs)
}

func TestReviewVotingFlow(t *testing.T) {
	f := setup(t)
	reviewsPath := fmt.Sprintf("/api/courses/%d/reviews", f.course.ID)

	review := map[string]interface{}{"rating": 4, "title": "Solid", "would_recommend": true}
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "POST", reviewsPath, nil, review).Code)
	rec := f.do(t, "POST", reviewsPath, &f.student, review)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.CourseReview
	decode(t, rec, &created)

	votePath := fmt.Sprintf("/api/reviews/%d", created.ID)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "POST", votePath+"/helpful", nil, map[string]bool{"helpful": true}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", votePath+"/helpful", &f.other, map[string]string{}).Code)

	rec = f.do(t, "POST", votePath+"/helpful", &f.other, map[string]bool{"helpful": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var vote reviews.VoteResponse
	decode(t, rec, &vote)
	require.NotNil(t, vote.Vote)
	assert.True(t, *vote.Vote)
	assert.Equal(t, 1, vote.HelpfulVotes)

	rec = f.do(t, "POST", votePath+"/helpful", &f.other, map[string]bool{"helpful": false})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &vote)
	assert.False(t, *vote.Vote)
	assert.Equal(t, 0, vote.HelpfulVotes)

	rec = f.do(t, "GET", votePath+"/vote", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &vote)
	assert.Nil(t, vote.Vote)

	rec = f.do(t, "GET", reviewsPath+"?sort=helpful", &f.other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list reviews.ReviewsResponse
	decode(t, rec, &list)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, 1, list.Summary.Total)
	assert.Equal(t, false, list.MyVotes[created.ID])

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", reviewsPath+"?sort=random", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/reviews/9999/vote", nil, nil).Code)
}

func TestCompleteLessonRequiresEnrollment(t *testing.T) {
	f := setup(t)
	var lesson models.Lesson
	require.NoError(t, f.db.Where("course_id = ?", f.course.ID).Order("position").First(&lesson).Error)
	path := fmt.Sprintf("/api/courses/%d/lessons/%d/complete", f.course.ID, lesson.ID)

	assert.Equal(t, http.StatusForbidden, f.do(t, "POST", path, &f.student, nil).Code)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", f.course.ID), &f.student, nil).Code)
	rec := f.do(t, "POST", path, &f.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var progress struct {
		Completed int `json:"completed"`
		Total     int `json:"total"`
	}
	decode(t, rec, &progress)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 2, progress.Total)
}

func TestCompleteLessonUnderWrongCourse(t *testing.T) {
	f := setup(t)
	other := models.Course{Title: "Rust in practice"}
	require.NoError(t, f.db.Create(&other).Error)
	var lesson models.Lesson
	require.NoError(t, f.db.Where("course_id = ?", f.course.ID).First(&lesson).Error)
	for _, id := range []uint{f.course.ID, other.ID} {
		require.Equal(t, http.StatusCreated, f.do(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", id), &f.student, nil).Code)
	}

	rec := f.do(t, "POST", fmt.Sprintf("/api/courses/%d/lessons/%d/complete", other.ID, lesson.ID), &f.student, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var rows int64
	require.NoError(t, f.db.Model(&models.LessonCompletion{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestDeleteCourseRequiresOwner(t *testing.T) {
	f := setup(t)
	owner := models.User{Name: "Tom", Email: "tom@example.com", Password: "x", Role: models.Teacher, Status: models.Active}
	require.NoError(t, f.db.Create(&owner).Error)
	require.NoError(t, f.db.Model(&f.course).Update("teacher_id", owner.ID).Error)
	path := fmt.Sprintf("/api/courses/%d", f.course.ID)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "DELETE", path, nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "DELETE", path, &f.student, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", path, &owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", path, nil, nil).Code)
}
