package routes

import (
	"edu-go/pkg/courses"
	"edu-go/pkg/goauth"
	"edu-go/pkg/kfka"
	"edu-go/pkg/lessons"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/reviews"
	"edu-go/pkg/search"
	"edu-go/pkg/usercour"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"net/http"
)

type Handlers struct {
	Auth     *middleware.Auth
	Accounts *goauth.Service
	Courses  *courses.Handler
	Gate     *usercour.Gate
	Ledger   *lessons.Ledger
	Reviews  *reviews.Store
	Search   *search.Handler
}

// NewHandlers wires the domain services over one database.
func NewHandlers(db *gorm.DB, auth *middleware.Auth, index *search.Index, events kfka.Publisher, accounts *goauth.Service, log *logger.Logger) *Handlers {
	gate := usercour.NewGate(db, events, log)
	ledger := lessons.NewLedger(db, gate)
	votes := reviews.NewVoteLedger(db, events, log)
	store := reviews.NewStore(db, gate, votes, events, log)
	return &Handlers{
		Auth:     auth,
		Accounts: accounts,
		Courses: &courses.Handler{
			Catalog: courses.NewCatalog(db, index, log),
			Gate:    gate,
			Ledger:  ledger,
			Reviews: store,
			Log:     log,
		},
		Gate:    gate,
		Ledger:  ledger,
		Reviews: store,
		Search:  &search.Handler{Index: index, Log: log},
	}
}

func (h *Handlers) required(f http.HandlerFunc) http.Handler {
	return h.Auth.Required(f)
}

func (h *Handlers) optional(f http.HandlerFunc) http.Handler {
	return h.Auth.Optional(f)
}

func SetupAuth(r *mux.Router, h *Handlers) {
	r.HandleFunc("/api/send/register", h.Accounts.SendEmail).Methods("POST")
	r.HandleFunc("/api/auth/verify", h.Accounts.SignUp).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Accounts.Login).Methods("POST")
	r.HandleFunc("/api/auth/logout", h.Accounts.Logout).Methods("POST")
}

func SetupMe(r *mux.Router, h *Handlers) {
	r.Handle("/me", h.optional(h.Accounts.Me)).Methods("GET")
	r.Handle("/me/update", h.required(h.Accounts.UpdateMe)).Methods("PUT")
	r.Handle("/me/courses", h.required(h.Gate.GetUserCourses)).Methods("GET")
	r.Handle("/admin/users/{id:[0-9]+}", h.required(h.Accounts.UpdateUser)).Methods("PUT")
}

// SetupCourses registers /search before /{id} so the literal path wins.
func SetupCourses(r *mux.Router, h *Handlers) {
	r.Handle("/search", h.optional(h.Search.SearchCourses)).Methods("GET")
	r.Handle("", h.optional(h.Courses.GetAll)).Methods("GET")
	r.Handle("", h.required(h.Courses.Create)).Methods("POST")
	r.Handle("/{id:[0-9]+}", h.optional(h.Courses.GetByID)).Methods("GET")
	r.Handle("/{id:[0-9]+}", h.required(h.Courses.Delete)).Methods("DELETE")
	r.Handle("/{id:[0-9]+}/enroll", h.required(h.Gate.EnrollInCourse)).Methods("POST")
	r.Handle("/{id:[0-9]+}/enroll", h.required(h.Gate.LeaveCourse)).Methods("DELETE")
	r.Handle("/{id:[0-9]+}/sections", h.optional(h.Courses.GetSections)).Methods("GET")
	r.Handle("/{id:[0-9]+}/sections", h.required(h.Courses.CreateSection)).Methods("POST")
	r.Handle("/{id:[0-9]+}/sections/{sectionID:[0-9]+}/lessons", h.required(h.Courses.CreateLesson)).Methods("POST")
	r.Handle("/{id:[0-9]+}/lessons/{lessonID:[0-9]+}/complete", h.required(h.Ledger.CompleteLesson)).Methods("POST")
	r.Handle("/{id:[0-9]+}/materials", h.optional(h.Courses.GetMaterials)).Methods("GET")
	r.Handle("/{id:[0-9]+}/materials", h.required(h.Courses.CreateMaterial)).Methods("POST")
	r.Handle("/{id:[0-9]+}/reviews", h.optional(h.Reviews.GetCourseReviews)).Methods("GET")
	r.Handle("/{id:[0-9]+}/reviews", h.required(h.Reviews.CreateCourseReview)).Methods("POST")
}

func SetupReviews(r *mux.Router, h *Handlers) {
	r.Handle("/{id:[0-9]+}/helpful", h.required(h.Reviews.MarkReviewHelpful)).Methods("POST")
	r.Handle("/{id:[0-9]+}/vote", h.optional(h.Reviews.GetUserReviewVote)).Methods("GET")
}

func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	SetupAuth(r, h)
	SetupMe(r.PathPrefix("/api").Subrouter(), h)
	SetupCourses(r.PathPrefix("/api/courses").Subrouter(), h)
	SetupReviews(r.PathPrefix("/api/reviews").Subrouter(), h)
	return r
}
