package reviews

import (
	"edu-go/pkg/apperr"
	"edu-go/pkg/models"
	"sort"
	"strings"
)

type SortPolicy string

const (
	Newest  SortPolicy = "newest"
	Oldest  SortPolicy = "oldest"
	Highest SortPolicy = "highest"
	Lowest  SortPolicy = "lowest"
	Helpful SortPolicy = "helpful"
)

// ParseSortPolicy defaults to Newest for an empty value.
func ParseSortPolicy(s string) (SortPolicy, error) {
	p := SortPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return Newest, nil
	case Newest, Oldest, Highest, Lowest, Helpful:
		return p, nil
	}
	return "", apperr.Invalid("unknown sort policy " + s)
}

// newerFirst is the shared tie-break: createdAt descending, then id descending.
func newerFirst(a, b models.CourseReview) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// SortReviews orders reviews in place. HelpfulVotes must already be populated.
func SortReviews(reviews []models.CourseReview, policy SortPolicy) {
	less := func(i, j int) bool {
		a, b := reviews[i], reviews[j]
		switch policy {
		case Oldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case Highest:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case Lowest:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
		case Helpful:
			if a.HelpfulVotes != b.HelpfulVotes {
				return a.HelpfulVotes > b.HelpfulVotes
			}
		}
		return newerFirst(a, b)
	}
	sort.SliceStable(reviews, less)
}
