package app_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"recipe_feedback/internal/app"
	"recipe_feedback/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	seq         int
	items       map[string]domain.Feedback
	saveCalls   int
	deleteCalls int
	lastRecentN int
	failWith    error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{items: map[string]domain.Feedback{}} }

func (f *fakeRepo) Save(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if f.failWith != nil {
		return domain.Feedback{}, f.failWith
	}
	f.saveCalls++
	if fb.ID == "" {
		f.seq++
		fb.ID = fmt.Sprintf("%d", f.seq)
	}
	f.items[fb.ID] = fb
	return fb, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	if f.failWith != nil {
		return domain.Feedback{}, f.failWith
	}
	fb, ok := f.items[id]
	if !ok {
		return domain.Feedback{}, domain.ErrNotFound
	}
	return fb, nil
}

func (f *fakeRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := f.items[id]
	return ok, nil
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id string) error {
	f.deleteCalls++
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) FindAll(ctx context.Context) ([]domain.Feedback, error) {
	out := make([]domain.Feedback, 0, len(f.items))
	for _, fb := range f.items {
		out = append(out, fb)
	}
	return out, nil
}

func (f *fakeRepo) FindByAuthor(ctx context.Context, authorID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	for _, fb := range f.items {
		if fb.AuthorID == authorID {
			out = append(out, fb)
		}
	}
	sortDesc(out)
	return out, nil
}

func (f *fakeRepo) FindBySubject(ctx context.Context, subjectID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	for _, fb := range f.items {
		if fb.SubjectID == subjectID {
			out = append(out, fb)
		}
	}
	sortDesc(out)
	return out, nil
}

func (f *fakeRepo) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	fs, _ := f.FindBySubject(ctx, subjectID)
	return int64(len(fs)), nil
}

func (f *fakeRepo) AverageBySubject(ctx context.Context, subjectID string) (*float64, error) {
	fs, _ := f.FindBySubject(ctx, subjectID)
	if len(fs) == 0 {
		return nil, nil
	}
	var sum int
	for _, fb := range fs {
		sum += fb.Rating
	}
	avg := float64(sum) / float64(len(fs))
	return &avg, nil
}

func (f *fakeRepo) FindRecent(ctx context.Context, n int) ([]domain.Feedback, error) {
	f.lastRecentN = n
	out, _ := f.FindAll(ctx)
	sortDesc(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func sortDesc(fs []domain.Feedback) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].CreatedAt.After(fs[j].CreatedAt) })
}

type fakeRefs struct {
	users    map[string]bool
	subjects map[string]bool
}

func (r *fakeRefs) UserExists(ctx context.Context, id string) (bool, error) {
	return r.users[id], nil
}
func (r *fakeRefs) SubjectExists(ctx context.Context, id string) (bool, error) {
	return r.subjects[id], nil
}

type fakeRecommender struct {
	calls   int
	batches [][]domain.Feedback
	err     error
}

func (r *fakeRecommender) SubmitBatch(ctx context.Context, fs []domain.Feedback) error {
	r.calls++
	r.batches = append(r.batches, fs)
	return r.err
}

type fakeCache struct {
	summaries map[string]domain.RatingSummary
	drops     []string
}

func (c *fakeCache) Get(ctx context.Context, subjectID string) (domain.RatingSummary, bool, error) {
	s, ok := c.summaries[subjectID]
	return s, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, summary domain.RatingSummary, ttl time.Duration) error {
	if c.summaries == nil {
		c.summaries = map[string]domain.RatingSummary{}
	}
	c.summaries[summary.SubjectID] = summary
	return nil
}

func (c *fakeCache) Drop(ctx context.Context, subjectID string) error {
	c.drops = append(c.drops, subjectID)
	delete(c.summaries, subjectID)
	return nil
}

// ---- helpers ----

func newService(repo *fakeRepo) *app.FeedbackService {
	return app.NewFeedbackService(repo, nil, &fakeRecommender{}, nil, time.Minute, 100)
}

func mustCreate(t *testing.T, svc *app.FeedbackService, author, subject string, rating int) domain.Feedback {
	t.Helper()
	f, err := svc.Create(context.Background(), app.CreateFeedbackRequest{
		AuthorID: author, SubjectID: subject, Rating: rating,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return f
}

// ---- tests ----

func TestCreate_ValidRatings(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	for r := 1; r <= 5; r++ {
		f := mustCreate(t, svc, "user-1", "recipe-1", r)
		if f.Rating != r {
			t.Fatalf("stored rating %d, want %d", f.Rating, r)
		}
		if f.ID == "" {
			t.Fatalf("store must assign an id")
		}
		if f.CreatedAt.IsZero() || !f.CreatedAt.Equal(f.UpdatedAt) {
			t.Fatalf("timestamps not stamped at creation: %+v", f)
		}
	}
}

func TestCreate_OutOfRangeRatingRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	for _, r := range []int{0, -1, 6, 100} {
		_, err := svc.Create(context.Background(), app.CreateFeedbackRequest{
			AuthorID: "user-1", SubjectID: "recipe-1", Rating: r,
		})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("rating %d: expected validation error, got %v", r, err)
		}
		if _, ok := verr.Fields["rating"]; !ok {
			t.Fatalf("rating %d: expected field message for rating, got %+v", r, verr.Fields)
		}
	}
	if repo.saveCalls != 0 {
		t.Fatalf("invalid creates must not reach the store, saw %d saves", repo.saveCalls)
	}
}

func TestCreate_CommentTooLongRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	long := make([]rune, domain.MaxCommentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	c := string(long)
	_, err := svc.Create(context.Background(), app.CreateFeedbackRequest{
		AuthorID: "user-1", SubjectID: "recipe-1", Rating: 3, Comment: &c,
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("no record may be persisted")
	}
}

func TestCreate_ReferenceChecks(t *testing.T) {
	repo := newFakeRepo()
	refs := &fakeRefs{
		users:    map[string]bool{"user-1": true},
		subjects: map[string]bool{"recipe-1": true},
	}
	svc := app.NewFeedbackService(repo, refs, &fakeRecommender{}, nil, time.Minute, 100)
	ctx := context.Background()

	if _, err := svc.Create(ctx, app.CreateFeedbackRequest{AuthorID: "user-1", SubjectID: "recipe-1", Rating: 4}); err != nil {
		t.Fatalf("create with existing refs: %v", err)
	}

	_, err := svc.Create(ctx, app.CreateFeedbackRequest{AuthorID: "ghost", SubjectID: "recipe-1", Rating: 4})
	var rerr *domain.ReferenceNotFoundError
	if !errors.As(err, &rerr) || rerr.Kind != "author" {
		t.Fatalf("expected author reference error, got %v", err)
	}

	_, err = svc.Create(ctx, app.CreateFeedbackRequest{AuthorID: "user-1", SubjectID: "ghost", Rating: 4})
	if !errors.As(err, &rerr) || rerr.Kind != "subject" {
		t.Fatalf("expected subject reference error, got %v", err)
	}

	if repo.saveCalls != 1 {
		t.Fatalf("failed reference checks must not persist, saw %d saves", repo.saveCalls)
	}
}

func TestGetByID_UnknownIDIsNotFound(t *testing.T) {
	svc := newService(newFakeRepo())

	for _, id := range []string{"9999", "not-a-number"} {
		_, err := svc.GetByID(context.Background(), id)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("id %q: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestAverageRating(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	t.Run("no feedback", func(t *testing.T) {
		out, err := svc.AverageRating(ctx, "empty-recipe")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if out.AverageRating != 0.0 || out.TotalCount != 0 {
			t.Fatalf("expected 0.0/0, got %+v", out)
		}
	})

	t.Run("ratings 4 and 5", func(t *testing.T) {
		mustCreate(t, svc, "u1", "recipe-a", 4)
		mustCreate(t, svc, "u2", "recipe-a", 5)

		out, err := svc.AverageRating(ctx, "recipe-a")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if out.AverageRating != 4.5 || out.TotalCount != 2 {
			t.Fatalf("expected 4.5/2, got %+v", out)
		}
	})

	t.Run("ratings 4 4 5 round half-up", func(t *testing.T) {
		mustCreate(t, svc, "u1", "recipe-b", 4)
		mustCreate(t, svc, "u2", "recipe-b", 4)
		mustCreate(t, svc, "u3", "recipe-b", 5)

		out, err := svc.AverageRating(ctx, "recipe-b")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if out.AverageRating != 4.33 || out.TotalCount != 3 {
			t.Fatalf("expected 4.33/3, got %+v", out)
		}
	})
}

func TestAverageRating_CachedAndInvalidatedOnWrite(t *testing.T) {
	repo := newFakeRepo()
	cache := &fakeCache{}
	svc := app.NewFeedbackService(repo, nil, &fakeRecommender{}, cache, time.Minute, 100)
	ctx := context.Background()

	mustCreate(t, svc, "u1", "recipe-a", 4)

	first, err := svc.AverageRating(ctx, "recipe-a")
	if err != nil || first.AverageRating != 4.0 {
		t.Fatalf("first: %+v err=%v", first, err)
	}

	// bypass the service to mutate the store; the cached summary must win
	repo.items["1"] = func() domain.Feedback { f := repo.items["1"]; f.Rating = 1; return f }()
	second, err := svc.AverageRating(ctx, "recipe-a")
	if err != nil || second.AverageRating != 4.0 {
		t.Fatalf("expected cached 4.0, got %+v err=%v", second, err)
	}

	// a write through the service invalidates, so the next read recomputes
	mustCreate(t, svc, "u2", "recipe-a", 1)
	third, err := svc.AverageRating(ctx, "recipe-a")
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.AverageRating != 1.0 || third.TotalCount != 2 {
		t.Fatalf("expected recomputed 1.0/2, got %+v", third)
	}
}

func TestUpdate_MergeSemantics(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	created := mustCreate(t, svc, "user-1", "recipe-1", 4)
	time.Sleep(2 * time.Millisecond)

	t.Run("comment only keeps rating", func(t *testing.T) {
		updated, err := svc.Update(ctx, created.ID, app.UpdateFeedbackRequest{Comment: ptr("X")})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Rating != 4 || updated.Comment == nil || *updated.Comment != "X" {
			t.Fatalf("merge wrong: %+v", updated)
		}
		if !updated.UpdatedAt.After(created.UpdatedAt) {
			t.Fatalf("UpdatedAt must strictly increase")
		}
		if !updated.CreatedAt.Equal(created.CreatedAt) || updated.ID != created.ID {
			t.Fatalf("immutable fields altered: %+v", updated)
		}
	})

	t.Run("no fields refreshes UpdatedAt only", func(t *testing.T) {
		before, _ := svc.GetByID(ctx, created.ID)
		time.Sleep(2 * time.Millisecond)
		updated, err := svc.Update(ctx, created.ID, app.UpdateFeedbackRequest{})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Rating != before.Rating || *updated.Comment != *before.Comment {
			t.Fatalf("visible fields changed: %+v", updated)
		}
		if !updated.UpdatedAt.After(before.UpdatedAt) {
			t.Fatalf("UpdatedAt must refresh even with no changes")
		}
	})

	t.Run("out-of-range rating rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, created.ID, app.UpdateFeedbackRequest{Rating: ptr(9)})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := svc.Update(ctx, "4242", app.UpdateFeedbackRequest{Rating: ptr(2)})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	f := mustCreate(t, svc, "user-1", "recipe-1", 4)
	if err := svc.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("record still readable after delete")
	}

	deletesBefore := repo.deleteCalls
	if err := svc.Delete(ctx, "4242"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for nonexistent id, got %v", err)
	}
	if repo.deleteCalls != deletesBefore {
		t.Fatalf("delete on nonexistent id must not reach the store")
	}
}

func TestForwardRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("zero records is a no-op", func(t *testing.T) {
		repo := newFakeRepo()
		rec := &fakeRecommender{}
		svc := app.NewFeedbackService(repo, nil, rec, nil, time.Minute, 100)

		count, err := svc.ForwardRecent(ctx)
		if err != nil || count != 0 {
			t.Fatalf("expected silent no-op, got count=%d err=%v", count, err)
		}
		if rec.calls != 0 {
			t.Fatalf("no downstream call may be made with zero records")
		}
	})

	t.Run("requests at most the configured limit", func(t *testing.T) {
		repo := newFakeRepo()
		rec := &fakeRecommender{}
		svc := app.NewFeedbackService(repo, nil, rec, nil, time.Minute, 100)

		base := time.Now()
		for i := 0; i < 120; i++ {
			repo.items[fmt.Sprintf("%d", i)] = domain.Feedback{
				ID:        fmt.Sprintf("%d", i),
				AuthorID:  "u",
				SubjectID: "r",
				Rating:    3,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
				UpdatedAt: base.Add(time.Duration(i) * time.Second),
			}
		}

		count, err := svc.ForwardRecent(ctx)
		if err != nil {
			t.Fatalf("ForwardRecent: %v", err)
		}
		if repo.lastRecentN != 100 {
			t.Fatalf("store asked for %d records, want 100", repo.lastRecentN)
		}
		if count != 100 || len(rec.batches[0]) != 100 {
			t.Fatalf("expected exactly 100 forwarded, got %d", count)
		}
		// most recent first
		batch := rec.batches[0]
		if batch[0].ID != "119" || batch[99].ID != "20" {
			t.Fatalf("batch not CreatedAt-descending: first=%s last=%s", batch[0].ID, batch[99].ID)
		}
	})

	t.Run("collaborator failure surfaces as downstream error", func(t *testing.T) {
		repo := newFakeRepo()
		rec := &fakeRecommender{err: &domain.DownstreamError{URL: "http://rec:8082", Err: errors.New("connection refused")}}
		svc := app.NewFeedbackService(repo, nil, rec, nil, time.Minute, 100)

		repo.items["1"] = domain.Feedback{ID: "1", AuthorID: "u", SubjectID: "r", Rating: 3, CreatedAt: time.Now()}

		_, err := svc.ForwardRecent(ctx)
		var derr *domain.DownstreamError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DownstreamError, got %v", err)
		}
		if derr.URL != "http://rec:8082" {
			t.Fatalf("error must carry the target URL, got %q", derr.URL)
		}
		if errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("downstream failure conflated with not-found")
		}
	})
}

func TestStoreFailuresAreClassifiedInternal(t *testing.T) {
	repo := newFakeRepo()
	repo.failWith = errors.New("driver: bad connection")
	svc := newService(repo)

	_, err := svc.GetByID(context.Background(), "1")
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected ErrInternal wrap, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("internal failure conflated with not-found")
	}
}
