package reviews

import "edu-go/pkg/models"

type Summary struct {
	Average       float64     `json:"average"`
	PerStar       map[int]int `json:"per_star"`
	Total         int         `json:"total"`
	RecommendRate float64     `json:"recommend_rate"`
}

// Summarize always reports all five star buckets. Average is unrounded and 0 for no reviews.
func Summarize(reviews []models.CourseReview) Summary {
	s := Summary{PerStar: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	if len(reviews) == 0 {
		return s
	}
	sum, recommend := 0, 0
	for _, r := range reviews {
		s.PerStar[r.Rating]++
		sum += r.Rating
		if r.WouldRecommend {
			recommend++
		}
	}
	s.Total = len(reviews)
	s.Average = float64(sum) / float64(s.Total)
	s.RecommendRate = float64(recommend) / float64(s.Total)
	return s
}
