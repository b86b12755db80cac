package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"recipe_feedback/internal/domain"
)

// FeedbackService owns the business rules around the feedback lifecycle.
// It talks to the store and the collaborators only through their ports, so
// the same code runs against MySQL, Mongo or the remote persistence service.
type FeedbackService struct {
	repo         domain.FeedbackRepository
	refs         domain.ReferenceChecker // nil when reference checks are disabled
	rec          domain.RecommendationClient
	cache        domain.SummaryCache // nil when no cache is wired
	cacheTTL     time.Duration
	forwardLimit int
}

func NewFeedbackService(
	repo domain.FeedbackRepository,
	refs domain.ReferenceChecker,
	rec domain.RecommendationClient,
	cache domain.SummaryCache,
	cacheTTL time.Duration,
	forwardLimit int,
) *FeedbackService {
	if forwardLimit <= 0 {
		forwardLimit = 100
	}
	return &FeedbackService{
		repo:         repo,
		refs:         refs,
		rec:          rec,
		cache:        cache,
		cacheTTL:     cacheTTL,
		forwardLimit: forwardLimit,
	}
}

// Create validates the request, optionally verifies that the author and
// subject exist, and persists exactly one new record. Nothing is written
// when validation or a reference check fails.
func (s *FeedbackService) Create(ctx context.Context, req CreateFeedbackRequest) (domain.Feedback, error) {
	if verr := validateCreate(req); verr != nil {
		return domain.Feedback{}, verr
	}

	if s.refs != nil {
		ok, err := s.refs.UserExists(ctx, req.AuthorID)
		if err != nil {
			return domain.Feedback{}, err
		}
		if !ok {
			return domain.Feedback{}, &domain.ReferenceNotFoundError{Kind: "author", ID: req.AuthorID}
		}
		ok, err = s.refs.SubjectExists(ctx, req.SubjectID)
		if err != nil {
			return domain.Feedback{}, err
		}
		if !ok {
			return domain.Feedback{}, &domain.ReferenceNotFoundError{Kind: "subject", ID: req.SubjectID}
		}
	}

	saved, err := s.repo.Save(ctx, NewFeedback(req, time.Now().UTC()))
	if err != nil {
		return domain.Feedback{}, storeErr("create feedback", err)
	}

	s.invalidateSummary(ctx, saved.SubjectID)
	log.Info().Str("id", saved.ID).Str("subject", saved.SubjectID).Msg("feedback created")
	return saved, nil
}

func (s *FeedbackService) GetByID(ctx context.Context, id string) (domain.Feedback, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Feedback{}, storeErr("get feedback", err)
	}
	return f, nil
}

// ListAll returns every record in store-defined order.
func (s *FeedbackService) ListAll(ctx context.Context) ([]domain.Feedback, error) {
	fs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, storeErr("list feedbacks", err)
	}
	return fs, nil
}

func (s *FeedbackService) ListByAuthor(ctx context.Context, authorID string) ([]domain.Feedback, error) {
	fs, err := s.repo.FindByAuthor(ctx, authorID)
	if err != nil {
		return nil, storeErr("list feedbacks by author", err)
	}
	return fs, nil
}

func (s *FeedbackService) ListBySubject(ctx context.Context, subjectID string) ([]domain.Feedback, error) {
	fs, err := s.repo.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, storeErr("list feedbacks by subject", err)
	}
	return fs, nil
}

// AverageRating computes the subject's mean rating store-side and rounds it
// half-up to two decimals. Summaries are cached per subject and invalidated
// by every write to that subject.
func (s *FeedbackService) AverageRating(ctx context.Context, subjectID string) (domain.RatingSummary, error) {
	if s.cache != nil {
		if cached, ok, _ := s.cache.Get(ctx, subjectID); ok {
			return cached, nil
		}
	}

	avg, err := s.repo.AverageBySubject(ctx, subjectID)
	if err != nil {
		return domain.RatingSummary{}, storeErr("average rating", err)
	}
	count, err := s.repo.CountBySubject(ctx, subjectID)
	if err != nil {
		return domain.RatingSummary{}, storeErr("count feedbacks", err)
	}

	out := domain.RatingSummary{
		SubjectID:     subjectID,
		AverageRating: RoundTwoDecimals(avg),
		TotalCount:    count,
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, out, s.cacheTTL)
	}
	return out, nil
}

// Update applies a partial update: absent fields keep their stored values,
// UpdatedAt is refreshed unconditionally. Id, author, subject and CreatedAt
// never change.
func (s *FeedbackService) Update(ctx context.Context, id string, req UpdateFeedbackRequest) (domain.Feedback, error) {
	if verr := validateUpdate(req); verr != nil {
		return domain.Feedback{}, verr
	}

	original, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Feedback{}, storeErr("load feedback", err)
	}

	saved, err := s.repo.Save(ctx, MergeUpdate(original, req, time.Now().UTC()))
	if err != nil {
		return domain.Feedback{}, storeErr("update feedback", err)
	}

	s.invalidateSummary(ctx, saved.SubjectID)
	log.Info().Str("id", saved.ID).Msg("feedback updated")
	return saved, nil
}

// Delete removes a record by id. The existence check runs first so a
// nonexistent id fails with not-found and no delete ever reaches the store.
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return storeErr("load feedback", err)
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return storeErr("delete feedback", err)
	}
	s.invalidateSummary(ctx, f.SubjectID)
	log.Info().Str("id", id).Msg("feedback deleted")
	return nil
}

// ForwardRecent sends the most recent records (up to the configured limit,
// CreatedAt descending) to the recommendation service. Zero records is a
// no-op with no network call. A single attempt is made; retrying a failed
// forward is the operator's job.
func (s *FeedbackService) ForwardRecent(ctx context.Context) (int, error) {
	fs, err := s.repo.FindRecent(ctx, s.forwardLimit)
	if err != nil {
		return 0, storeErr("load recent feedbacks", err)
	}
	if len(fs) == 0 {
		log.Info().Msg("no feedback to forward")
		return 0, nil
	}

	if err := s.rec.SubmitBatch(ctx, fs); err != nil {
		var de *domain.DownstreamError
		if errors.As(err, &de) {
			return 0, err
		}
		return 0, &domain.DownstreamError{URL: "recommendation service", Err: err}
	}
	log.Info().Int("count", len(fs)).Msg("feedback forwarded to recommendation service")
	return len(fs), nil
}

func (s *FeedbackService) invalidateSummary(ctx context.Context, subjectID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Drop(ctx, subjectID)
}

// storeErr keeps the business error kinds intact and classifies anything
// else as internal so raw driver errors never cross the service boundary.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	var verr *domain.ValidationError
	var rerr *domain.ReferenceNotFoundError
	var derr *domain.DownstreamError
	if errors.As(err, &verr) || errors.As(err, &rerr) || errors.As(err, &derr) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}

func validateCreate(req CreateFeedbackRequest) *domain.ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(req.AuthorID) == "" {
		fields["authorId"] = "author id is required"
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		fields["subjectId"] = "subject id is required"
	}
	if req.Rating < domain.MinRating || req.Rating > domain.MaxRating {
		fields["rating"] = fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if req.Comment != nil && len([]rune(*req.Comment)) > domain.MaxCommentLength {
		fields["comment"] = fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength)
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateUpdate(req UpdateFeedbackRequest) *domain.ValidationError {
	fields := map[string]string{}
	if req.Rating != nil && (*req.Rating < domain.MinRating || *req.Rating > domain.MaxRating) {
		fields["rating"] = fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if req.Comment != nil && len([]rune(*req.Comment)) > domain.MaxCommentLength {
		fields["comment"] = fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength)
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
