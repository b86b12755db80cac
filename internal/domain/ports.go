package domain

import (
	"context"
	"time"
)

// FeedbackRepository is the storage port. Implementations: MySQL, Mongo, and
// the remote persistence service client, selected by config at startup.
//
// Save assigns an id when f.ID is empty and replaces the stored record
// otherwise. FindByID and DeleteByID return ErrNotFound for unknown or
// malformed ids. FindByAuthor/FindBySubject/FindRecent are ordered by
// CreatedAt descending; FindAll ordering is store-defined.
type FeedbackRepository interface {
	Save(ctx context.Context, f Feedback) (Feedback, error)
	FindByID(ctx context.Context, id string) (Feedback, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) error
	FindAll(ctx context.Context) ([]Feedback, error)
	FindByAuthor(ctx context.Context, authorID string) ([]Feedback, error)
	FindBySubject(ctx context.Context, subjectID string) ([]Feedback, error)
	CountBySubject(ctx context.Context, subjectID string) (int64, error)
	// AverageBySubject returns nil when the subject has no feedback.
	AverageBySubject(ctx context.Context, subjectID string) (*float64, error)
	FindRecent(ctx context.Context, n int) ([]Feedback, error)
}

// ReferenceChecker verifies author/subject existence at create time.
// Wired only when reference checks are enabled in config.
type ReferenceChecker interface {
	UserExists(ctx context.Context, authorID string) (bool, error)
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
}

// RecommendationClient pushes a batch of recent feedback downstream.
// A failed call surfaces as *DownstreamError; it is never retried here.
type RecommendationClient interface {
	SubmitBatch(ctx context.Context, feedbacks []Feedback) error
}

// SummaryCache holds computed rating summaries keyed by subject. Misses are
// not errors: Get reports them through the bool.
type SummaryCache interface {
	Get(ctx context.Context, subjectID string) (RatingSummary, bool, error)
	Set(ctx context.Context, summary RatingSummary, ttl time.Duration) error
	Drop(ctx context.Context, subjectID string) error
}
