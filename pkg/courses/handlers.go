package courses

import (
	"edu-go/pkg/apperr"
	"edu-go/pkg/lessons"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"edu-go/pkg/reviews"
	"edu-go/pkg/usercour"
	"encoding/json"
	"github.com/gorilla/mux"
	"net/http"
	"strconv"
)

type Handler struct {
	Catalog *Catalog
	Gate    *usercour.Gate
	Ledger  *lessons.Ledger
	Reviews *reviews.Store
	Log     *logger.Logger
}

type CourseDetails struct {
	Course     *models.Course    `json:"course"`
	IsEnrolled bool              `json:"is_enrolled"`
	Progress   *lessons.Progress `json:"progress,omitempty"`
	Rating     *reviews.Summary  `json:"rating,omitempty"`
}

type LessonView struct {
	models.Lesson
	Completed bool `json:"completed"`
}

type SectionView struct {
	ID       uint         `json:"id"`
	Title    string       `json:"title"`
	Position int          `json:"position"`
	Lessons  []LessonView `json:"lessons"`
}

type SectionsResponse struct {
	IsEnrolled bool          `json:"is_enrolled"`
	Sections   []SectionView `json:"sections"`
}

// MaterialsResponse keeps enrollment and each material's downloadable flag apart;
// the client unlocks a material when either is true.
type MaterialsResponse struct {
	IsEnrolled bool                    `json:"is_enrolled"`
	Materials  []models.CourseMaterial `json:"materials"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.Status(err) == http.StatusInternalServerError {
		h.Log.Error(op, "error", err)
	}
	apperr.Write(w, err)
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Catalog.ListCourses(r.Context())
	if err != nil {
		h.fail(w, "list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r)
	if !ok {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	var in CourseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "cannot decode course", http.StatusBadRequest)
		return
	}
	course, err := h.Catalog.CreateCourse(r.Context(), user, in)
	if err != nil {
		h.fail(w, "create course", err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	course, err := h.Catalog.GetCourse(r.Context(), id)
	if err != nil {
		h.fail(w, "get course", err)
		return
	}
	if course == nil {
		http.Error(w, "course not found", http.StatusNotFound)
		return
	}
	userID := middleware.UserID(r)
	enrolled, err := h.Gate.IsEnrolled(r.Context(), userID, id)
	if err != nil {
		h.fail(w, "check enrollment", err)
		return
	}
	details := CourseDetails{Course: course, IsEnrolled: enrolled}
	if enrolled {
		progress, err := h.Ledger.Progress(r.Context(), userID, id)
		if err != nil {
			h.fail(w, "load progress", err)
			return
		}
		details.Progress = &progress
	}
	if h.Reviews != nil {
		summary, err := h.Reviews.CourseSummary(r.Context(), id)
		if err != nil {
			h.fail(w, "load rating", err)
			return
		}
		details.Rating = &summary
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r)
	if !ok {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	if err := h.Catalog.DeleteCourse(r.Context(), user, id); err != nil {
		h.fail(w, "delete course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r)
	enrolled, err := h.Gate.IsEnrolled(r.Context(), userID, id)
	if err != nil {
		h.fail(w, "check enrollment", err)
		return
	}
	sections, err := h.Catalog.GetSections(r.Context(), id)
	if err != nil {
		h.fail(w, "get sections", err)
		return
	}
	done := map[uint]bool{}
	if enrolled {
		if done, err = h.Ledger.CompletedLessonIDs(r.Context(), userID, id); err != nil {
			h.fail(w, "load completions", err)
			return
		}
	}
	resp := SectionsResponse{IsEnrolled: enrolled, Sections: make([]SectionView, 0, len(sections))}
	for _, s := range sections {
		view := SectionView{ID: s.ID, Title: s.Title, Position: s.Position, Lessons: make([]LessonView, 0, len(s.Lessons))}
		for _, l := range s.Lessons {
			view.Lessons = append(view.Lessons, LessonView{Lesson: l, Completed: done[l.ID]})
		}
		resp.Sections = append(resp.Sections, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMaterials(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	enrolled, err := h.Gate.IsEnrolled(r.Context(), middleware.UserID(r), id)
	if err != nil {
		h.fail(w, "check enrollment", err)
		return
	}
	materials, err := h.Catalog.GetMaterials(r.Context(), id)
	if err != nil {
		h.fail(w, "get materials", err)
		return
	}
	writeJSON(w, http.StatusOK, MaterialsResponse{IsEnrolled: enrolled, Materials: materials})
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUserFromContext(r)
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	var in struct {
		Title    string `json:"title"`
		Position int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "cannot decode section", http.StatusBadRequest)
		return
	}
	section, err := h.Catalog.AddSection(r.Context(), user, id, in.Title, in.Position)
	if err != nil {
		h.fail(w, "create section", err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUserFromContext(r)
	id, ok := pathID(r, "id")
	sectionID, ok2 := pathID(r, "sectionID")
	if !ok || !ok2 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var in LessonInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "cannot decode lesson", http.StatusBadRequest)
		return
	}
	lesson, err := h.Catalog.AddLesson(r.Context(), user, id, sectionID, in)
	if err != nil {
		h.fail(w, "create lesson", err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUserFromContext(r)
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	var in MaterialInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "cannot decode material", http.StatusBadRequest)
		return
	}
	material, err := h.Catalog.AddMaterial(r.Context(), user, id, in)
	if err != nil {
		h.fail(w, "create material", err)
		return
	}
	writeJSON(w, http.StatusCreated, material)
}
