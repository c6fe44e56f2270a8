package reviews

import (
	"edu-go/pkg/apperr"
	"edu-go/pkg/middleware"
	"edu-go/pkg/models"
	"encoding/json"
	"github.com/gorilla/mux"
	"net/http"
	"strconv"
)

type ReviewsResponse struct {
	Sort    SortPolicy            `json:"sort"`
	Summary Summary               `json:"summary"`
	Reviews []models.CourseReview `json:"reviews"`
	MyVotes map[uint]bool         `json:"my_votes,omitempty"`
}

type VoteRequest struct {
	Helpful *bool `json:"helpful"`
}

type VoteResponse struct {
	ReviewID     uint  `json:"review_id"`
	Vote         *bool `json:"vote"`
	HelpfulVotes int   `json:"helpful_votes"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id), err == nil && id != 0
}

func (s *Store) fail(w http.ResponseWriter, op string, err error) {
	if apperr.Status(err) == http.StatusInternalServerError {
		s.Log.Error(op, "error", err)
	}
	apperr.Write(w, err)
}

func (s *Store) GetCourseReviews(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	policy, err := ParseSortPolicy(r.URL.Query().Get("sort"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	reviews, err := s.GetReviews(r.Context(), courseID, policy)
	if err != nil {
		s.fail(w, "get reviews", err)
		return
	}
	resp := ReviewsResponse{Sort: policy, Reviews: reviews, Summary: Summarize(reviews)}
	if userID := middleware.UserID(r); userID != 0 {
		ids := make([]uint, len(reviews))
		for i, rv := range reviews {
			ids[i] = rv.ID
		}
		if resp.MyVotes, err = s.Votes.UserVotes(r.Context(), userID, ids); err != nil {
			s.fail(w, "get user votes", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Store) CreateCourseReview(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid course id", http.StatusBadRequest)
		return
	}
	var in ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "cannot decode review", http.StatusBadRequest)
		return
	}
	in.CourseID = courseID
	in.UserID = middleware.UserID(r)
	review, err := s.CreateReview(r.Context(), in)
	if err != nil {
		s.fail(w, "create review", err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Store) MarkReviewHelpful(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid review id", http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r)
	if userID == 0 {
		http.Error(w, "login required to vote", http.StatusUnauthorized)
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Helpful == nil {
		http.Error(w, "helpful must be true or false", http.StatusBadRequest)
		return
	}
	if err := s.Votes.MarkHelpful(r.Context(), reviewID, userID, *req.Helpful); err != nil {
		s.fail(w, "mark helpful", err)
		return
	}
	s.writeVote(w, r, reviewID, userID)
}

func (s *Store) GetUserReviewVote(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid review id", http.StatusBadRequest)
		return
	}
	review, err := s.GetReview(r.Context(), reviewID)
	if err != nil {
		s.fail(w, "get review", err)
		return
	}
	if review == nil {
		http.Error(w, "review not found", http.StatusNotFound)
		return
	}
	s.writeVote(w, r, reviewID, middleware.UserID(r))
}

func (s *Store) writeVote(w http.ResponseWriter, r *http.Request, reviewID, userID uint) {
	vote, err := s.Votes.GetUserVote(r.Context(), reviewID, userID)
	if err != nil {
		s.fail(w, "get vote", err)
		return
	}
	count, err := s.Votes.HelpfulCount(r.Context(), reviewID)
	if err != nil {
		s.fail(w, "count votes", err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{ReviewID: reviewID, Vote: vote, HelpfulVotes: count})
}
