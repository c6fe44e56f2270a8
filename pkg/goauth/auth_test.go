package goauth

import (
	"bytes"
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/dbtest"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCodes struct {
	mu   sync.Mutex
	vals map[string]string
}

func (m *memCodes) Set(_ context.Context, code, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[code] = value
	return nil
}

func (m *memCodes) Take(_ context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[code]
	if !ok {
		return "", ErrCodeNotFound
	}
	delete(m.vals, code)
	return v, nil
}

type mailbox struct {
	to, code string
}

func (m *mailbox) SendCode(to, code string) error {
	m.to, m.code = to, code
	return nil
}

func newService(t *testing.T) (*Service, *mailbox) {
	db := dbtest.Open(t)
	box := &mailbox{}
	return &Service{
		DB:    db,
		Auth:  middleware.NewAuth(db, "test-secret"),
		Codes: &memCodes{vals: map[string]string{}},
		Mail:  box,
		Log:   logger.Nop(),
	}, box
}

func TestRegisterAndVerify(t *testing.T) {
	s, box := newService(t)
	ctx := context.Background()

	err := s.Register(ctx, RegRequest{Name: "Ann", Email: " Ann@Example.com ", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", box.to)
	assert.Len(t, box.code, 6)

	user, err := s.Verify(ctx, box.code)
	require.NoError(t, err)
	assert.Equal(t, models.Student, user.Role)
	assert.Equal(t, models.Active, user.Status)
	assert.NotEqual(t, "longenough", user.Password)

	_, err = s.Verify(ctx, box.code)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTeacherStartsPending(t *testing.T) {
	s, box := newService(t)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, RegRequest{Name: "Tom", Email: "tom@example.com", Password: "longenough", Role: models.Teacher}))
	user, err := s.Verify(ctx, box.code)
	require.NoError(t, err)
	assert.Equal(t, models.Pending, user.Status)
}

func TestRegisterValidation(t *testing.T) {
	s, box := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Register(ctx, RegRequest{Email: "nope", Password: "longenough"}), apperr.ErrValidation)
	assert.ErrorIs(t, s.Register(ctx, RegRequest{Email: "a@b.c", Password: "short"}), apperr.ErrValidation)
	assert.ErrorIs(t, s.Register(ctx, RegRequest{Email: "a@b.c", Password: "longenough", Role: models.Admin}), apperr.ErrValidation)

	require.NoError(t, s.Register(ctx, RegRequest{Email: "a@b.c", Password: "longenough"}))
	_, err := s.Verify(ctx, box.code)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Register(ctx, RegRequest{Email: "A@b.c", Password: "longenough"}), apperr.ErrValidation)
}

func signUp(t *testing.T, s *Service, box *mailbox, email string) models.User {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, RegRequest{Name: "U", Email: email, Password: "longenough"}))
	user, err := s.Verify(ctx, box.code)
	require.NoError(t, err)
	return user
}

func TestAuthenticate(t *testing.T) {
	s, box := newService(t)
	ctx := context.Background()
	user := signUp(t, s, box, "ann@example.com")

	got, err := s.Authenticate(ctx, "ANN@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.Authenticate(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = s.Authenticate(ctx, "ghost@example.com", "longenough")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, s.DB.Model(&user).Update("status", models.Suspended).Error)
	_, err = s.Authenticate(ctx, "ann@example.com", "longenough")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestLoginSetsCookieAndMeResolvesIt(t *testing.T) {
	s, box := newService(t)
	signUp(t, s, box, "ann@example.com")

	body, _ := json.Marshal(map[string]string{"email": "ann@example.com", "password": "longenough"})
	rec := httptest.NewRecorder()
	s.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CookieName, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	s.Auth.Optional(http.HandlerFunc(s.Me)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "ann@example.com", me.Email)
}

func TestMeAnonymous(t *testing.T) {
	s, _ := newService(t)
	rec := httptest.NewRecorder()
	s.Auth.Optional(http.HandlerFunc(s.Me)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMeRejectsRoleChange(t *testing.T) {
	s, box := newService(t)
	user := signUp(t, s, box, "ann@example.com")

	req := httptest.NewRequest(http.MethodPut, "/api/me/update", bytes.NewReader([]byte(`{"role":"admin"}`)))
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	s.UpdateMe(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/me/update", bytes.NewReader([]byte(`{"bio":" hi ","subjects":["go"]}`)))
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec = httptest.NewRecorder()
	s.UpdateMe(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, s.DB.First(&stored, user.ID).Error)
	assert.Equal(t, "hi", stored.Bio)
	assert.Empty(t, stored.Subjects, "only teachers keep subjects")
}

func TestAdminUpdate(t *testing.T) {
	s, box := newService(t)
	ctx := context.Background()
	admin := models.User{Name: "Root", Email: "root@example.com", Password: "x", Role: models.Admin, Status: models.Active}
	require.NoError(t, s.DB.Create(&admin).Error)
	user := signUp(t, s, box, "ann@example.com")

	teacher, suspended := "teacher", "suspended"
	subjects := []string{"go", "sql"}
	_, err := s.AdminUpdate(ctx, user, admin.ID, ProfileUpdate{Role: &teacher})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	bogus := "wizard"
	_, err = s.AdminUpdate(ctx, admin, user.ID, ProfileUpdate{Role: &bogus})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.AdminUpdate(ctx, admin, 9999, ProfileUpdate{Role: &teacher})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := s.AdminUpdate(ctx, admin, user.ID, ProfileUpdate{Role: &teacher, Subjects: &subjects})
	require.NoError(t, err)
	assert.Equal(t, models.Teacher, got.Role)
	assert.Equal(t, []string{"go", "sql"}, []string(got.Subjects))

	got, err = s.AdminUpdate(ctx, admin, user.ID, ProfileUpdate{Status: &suspended})
	require.NoError(t, err)
	assert.Equal(t, models.Suspended, got.Status)
}

func TestUpdateUserHandler(t *testing.T) {
	s, box := newService(t)
	admin := models.User{Name: "Root", Email: "root@example.com", Password: "x", Role: models.Admin, Status: models.Active}
	require.NoError(t, s.DB.Create(&admin).Error)
	user := signUp(t, s, box, "ann@example.com")

	router := mux.NewRouter()
	router.HandleFunc("/api/admin/users/{id}", s.UpdateUser).Methods(http.MethodPut)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/abc", bytes.NewReader([]byte(`{}`)))
	req = req.WithContext(middleware.WithUser(req.Context(), admin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/admin/users/"+itoa(user.ID), bytes.NewReader([]byte(`{"status":"suspended"}`)))
	req = req.WithContext(middleware.WithUser(req.Context(), admin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
