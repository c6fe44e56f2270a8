package usercour

import (
	"edu-go/pkg/apperr"
	"edu-go/pkg/middleware"
	"encoding/json"
	"github.com/gorilla/mux"
	"net/http"
	"strconv"
)

func (g *Gate) EnrollInCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	enrollment, err := g.Enroll(r.Context(), middleware.UserID(r), uint(courseID))
	if err != nil {
		if apperr.Status(err) == http.StatusInternalServerError {
			g.Log.Error("enroll", "course_id", courseID, "error", err)
		}
		apperr.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(enrollment)
}

func (g *Gate) LeaveCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	if err := g.Unenroll(r.Context(), middleware.UserID(r), uint(courseID)); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gate) GetUserCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := g.Enrollments(r.Context(), middleware.UserID(r))
	if err != nil {
		g.Log.Error("list user courses", "error", err)
		apperr.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(courses)
}
