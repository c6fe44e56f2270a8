package search

import (
	"edu-go/pkg/logger"
	"encoding/json"
	"net/http"
	"strings"
)

type Handler struct {
	Index *Index
	Log   *logger.Logger
}

func (h *Handler) SearchCourses(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.Index.SearchCourses(r.Context(), q)
	if err != nil {
		h.Log.Error("search courses", "q", q, "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
