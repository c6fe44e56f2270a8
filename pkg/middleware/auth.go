package middleware

import (
	"context"
	"edu-go/pkg/apperr"
	"edu-go/pkg/models"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
	"net/http"
	"time"
)

const CookieName = "token"

type ctxKey struct{}

// Auth is the identity provider: it turns the token cookie into a loaded User.
type Auth struct {
	DB     *gorm.DB
	Secret []byte
}

func NewAuth(db *gorm.DB, secret string) *Auth {
	return &Auth{DB: db, Secret: []byte(secret)}
}

func (a *Auth) IssueToken(userID uint, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
	})
	s, err := token.SignedString(a.Secret)
	return s, exp, err
}

func (a *Auth) parse(raw string) (uint, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperr.Unauthorizedf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apperr.Unauthorizedf("invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, apperr.Unauthorizedf("invalid subject")
	}
	return uint(sub), nil
}

// Resolve returns the user behind the request cookie. Suspended users are rejected.
func (a *Auth) Resolve(r *http.Request) (models.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return models.User{}, apperr.Unauthorizedf("not authorized")
	}
	userID, err := a.parse(cookie.Value)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := a.DB.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, apperr.Unauthorizedf("user not found")
		}
		return models.User{}, err
	}
	if user.Status == models.Suspended {
		return models.User{}, apperr.Forbiddenf("account suspended")
	}
	return user, nil
}

func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Resolve(r)
		if err != nil {
			apperr.Write(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Optional attaches the user when a valid token is present and lets anonymous requests through.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := a.Resolve(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func GetUserFromContext(r *http.Request) (models.User, bool) {
	return CurrentUser(r.Context())
}

func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}

// UserID is 0 for anonymous callers.
func UserID(r *http.Request) uint {
	user, ok := GetUserFromContext(r)
	if !ok {
		return 0
	}
	return user.ID
}

func IsStaff(user models.User) bool {
	return user.Role == models.Admin || user.Role == models.Teacher
}
