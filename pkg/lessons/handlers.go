package lessons

import (
	"edu-go/pkg/apperr"
	"edu-go/pkg/middleware"
	"encoding/json"
	"github.com/gorilla/mux"
	"net/http"
	"strconv"
)

func (l *Ledger) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	courseID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	lessonID, err := strconv.ParseUint(vars["lessonID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid lesson id", http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r)
	if err := l.MarkCompleted(r.Context(), userID, uint(courseID), uint(lessonID)); err != nil {
		apperr.Write(w, err)
		return
	}
	progress, err := l.Progress(r.Context(), userID, uint(courseID))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(progress)
}
