package domain

import "time"

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
)

// Feedback is a rating+comment a user submitted about a recipe.
// ID is opaque: the store assigns it at creation and it never changes
// (decimal string for MySQL, ObjectID hex for Mongo, pass-through for
// the remote persistence service).
type Feedback struct {
	ID        string
	AuthorID  string
	SubjectID string
	Rating    int
	Comment   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingSummary is the aggregate view over all feedback for one subject.
type RatingSummary struct {
	SubjectID     string  `json:"subjectId"`
	AverageRating float64 `json:"averageRating"`
	TotalCount    int64   `json:"totalCount"`
}
