package goauth

import (
	"context"
	"crypto/rand"
	"edu-go/pkg/apperr"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"math/big"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

const (
	codeTTL  = 10 * time.Minute
	tokenTTL = 72 * time.Hour
)

type CodeMailer interface {
	SendCode(to, code string) error
}

type Service struct {
	DB    *gorm.DB
	Auth  *middleware.Auth
	Codes CodeStore
	Mail  CodeMailer
	Log   *logger.Logger
}

type RegRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type CodeReg struct {
	Code string `json:"code"`
}

type pending struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Hash  string      `json:"hash"`
	Role  models.Role `json:"role"`
}

func (r *RegRequest) validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperr.Invalid("invalid email")
	}
	if len(r.Password) < 8 {
		return apperr.Invalid("password must be at least 8 characters")
	}
	if r.Role == "" {
		r.Role = models.Student
	}
	if r.Role != models.Student && r.Role != models.Teacher {
		return apperr.Invalid("role must be student or teacher")
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Service) fail(w http.ResponseWriter, op string, err error) {
	if apperr.Status(err) == http.StatusInternalServerError {
		s.Log.Error(op, "error", err)
	}
	apperr.Write(w, err)
}

// Register stores the pending account under a fresh code and mails the code.
func (s *Service) Register(ctx context.Context, req RegRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return apperr.Invalid("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	payload, err := json.Marshal(pending{Name: strings.TrimSpace(req.Name), Email: req.Email, Hash: string(hash), Role: req.Role})
	if err != nil {
		return err
	}
	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.Codes.Set(ctx, code, string(payload), codeTTL); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := s.Mail.SendCode(req.Email, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

// Verify turns a pending registration into a user. Teachers start pending until an admin activates them.
func (s *Service) Verify(ctx context.Context, code string) (models.User, error) {
	val, err := s.Codes.Take(ctx, strings.TrimSpace(code))
	if errors.Is(err, ErrCodeNotFound) {
		return models.User{}, apperr.Invalid("wrong or expired code")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("read code: %w", err)
	}
	var p pending
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return models.User{}, fmt.Errorf("decode pending registration: %w", err)
	}
	user := models.User{Name: p.Name, Email: p.Email, Password: p.Hash, Role: p.Role, Status: models.Active}
	if p.Role == models.Teacher {
		user.Status = models.Pending
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperr.Unauthorizedf("wrong email or password")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return models.User{}, apperr.Unauthorizedf("wrong email or password")
	}
	if user.Status == models.Suspended {
		return models.User{}, apperr.Forbiddenf("account suspended")
	}
	return user, nil
}

func (s *Service) setCookie(w http.ResponseWriter, user models.User) error {
	token, exp, err := s.Auth.IssueToken(user.ID, tokenTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Service) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req RegRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "cannot decode form", http.StatusBadRequest)
		return
	}
	if err := s.Register(r.Context(), req); err != nil {
		s.fail(w, "register", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) SignUp(w http.ResponseWriter, r *http.Request) {
	var cr CodeReg
	if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
		http.Error(w, "cannot decode code", http.StatusBadRequest)
		return
	}
	user, err := s.Verify(r.Context(), cr.Code)
	if err != nil {
		s.fail(w, "verify", err)
		return
	}
	if err := s.setCookie(w, user); err != nil {
		s.fail(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Data models.User `json:"data"`
	}{Data: user})
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "cannot decode credentials", http.StatusBadRequest)
		return
	}
	user, err := s.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, "login", err)
		return
	}
	if err := s.setCookie(w, user); err != nil {
		s.fail(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data models.User `json:"data"`
	}{Data: user})
}

func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

// Me is getCurrentUser over HTTP: 200 with the user, or 401 for anonymous callers.
func (s *Service) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r)
	if !ok {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ProfileUpdate struct {
	Name     *string   `json:"name"`
	Bio      *string   `json:"bio"`
	Subjects *[]string `json:"subjects"`
	Role     *string   `json:"role"`
	Status   *string   `json:"status"`
}

func applyProfile(user *models.User, u ProfileUpdate) {
	if u.Name != nil {
		user.Name = strings.TrimSpace(*u.Name)
	}
	if u.Bio != nil {
		user.Bio = strings.TrimSpace(*u.Bio)
	}
	if u.Subjects != nil {
		user.Subjects = append(user.Subjects[:0:0], *u.Subjects...)
	}
	if user.Role != models.Teacher {
		user.Subjects = nil
	}
}

func (s *Service) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r)
	if !ok {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	var u ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "cannot decode profile", http.StatusBadRequest)
		return
	}
	if u.Role != nil || u.Status != nil {
		http.Error(w, "role and status are changed by an admin", http.StatusForbidden)
		return
	}
	applyProfile(&user, u)
	if err := s.DB.WithContext(r.Context()).Save(&user).Error; err != nil {
		s.fail(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// AdminUpdate edits another account; role and status changes are validated first.
func (s *Service) AdminUpdate(ctx context.Context, actor models.User, userID uint, u ProfileUpdate) (models.User, error) {
	if actor.Role != models.Admin {
		return models.User{}, apperr.Forbiddenf("admin only")
	}
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperr.NotFoundf("user not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if u.Role != nil {
		role := models.Role(*u.Role)
		if !role.Valid() {
			return models.User{}, apperr.Invalid("unknown role")
		}
		user.Role = role
	}
	if u.Status != nil {
		status := models.Status(*u.Status)
		if !status.Valid() {
			return models.User{}, apperr.Invalid("unknown status")
		}
		user.Status = status
	}
	applyProfile(&user, u)
	if err := s.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return models.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (s *Service) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUserFromContext(r)
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var u ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "cannot decode profile", http.StatusBadRequest)
		return
	}
	user, err := s.AdminUpdate(r.Context(), actor, uint(id), u)
	if err != nil {
		s.fail(w, "admin update user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
