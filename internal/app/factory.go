package app

import (
	"math"
	"time"

	"recipe_feedback/internal/domain"
)

// Transport-facing shapes. The handlers decode/encode these; the service and
// stores only ever see domain.Feedback.

type CreateFeedbackRequest struct {
	AuthorID  string  `json:"authorId"`
	SubjectID string  `json:"subjectId"`
	Rating    int     `json:"rating"`
	Comment   *string `json:"comment,omitempty"`
}

// UpdateFeedbackRequest carries a partial update: a nil field keeps the
// stored value, a present field overwrites it.
type UpdateFeedbackRequest struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	SubjectID string    `json:"subjectId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewFeedback builds the entity for a create request. Both timestamps are
// stamped with now; the id stays empty until the store assigns one.
func NewFeedback(req CreateFeedbackRequest, now time.Time) domain.Feedback {
	return domain.Feedback{
		AuthorID:  req.AuthorID,
		SubjectID: req.SubjectID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MergeUpdate returns a copy of original with the present fields of req
// applied. ID, AuthorID, SubjectID and CreatedAt are never touched;
// UpdatedAt is always refreshed, even when the effective values are
// unchanged.
func MergeUpdate(original domain.Feedback, req UpdateFeedbackRequest, now time.Time) domain.Feedback {
	merged := original
	if req.Rating != nil {
		merged.Rating = *req.Rating
	}
	if req.Comment != nil {
		merged.Comment = req.Comment
	}
	merged.UpdatedAt = now
	return merged
}

func ToResponse(f domain.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        f.ID,
		AuthorID:  f.AuthorID,
		SubjectID: f.SubjectID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ToResponseList maps element-wise; empty input yields an empty, non-nil
// slice so list endpoints always serialize as [].
func ToResponseList(fs []domain.Feedback) []FeedbackResponse {
	out := make([]FeedbackResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, ToResponse(f))
	}
	return out
}

// RoundTwoDecimals rounds half-up to two decimals; nil means "no ratings"
// and maps to 0.0. Every backend's average goes through this one function.
func RoundTwoDecimals(v *float64) float64 {
	if v == nil {
		return 0.0
	}
	return math.Floor(*v*100+0.5) / 100
}
