package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"recipe_feedback/internal/adapters/observability"
	"recipe_feedback/internal/domain"
)

// Client is the remote storage variant: feedback records live in a sibling
// Persistence service and every repository operation is an HTTP call. The
// same client doubles as the create-time reference checker since the
// Persistence service also owns users and recipes.
//
// One attempt per call. 404 maps to domain.ErrNotFound; transport failures
// and other non-2xx responses map to *domain.DownstreamError.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

var (
	_ domain.FeedbackRepository = (*Client)(nil)
	_ domain.ReferenceChecker   = (*Client)(nil)
)

func New(base string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// wire shape of the Persistence service's feedback resource
type feedbackDoc struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	SubjectID string    `json:"subjectId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toDoc(f domain.Feedback) feedbackDoc {
	return feedbackDoc{
		ID:        f.ID,
		AuthorID:  f.AuthorID,
		SubjectID: f.SubjectID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func fromDoc(d feedbackDoc) domain.Feedback {
	return domain.Feedback{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		SubjectID: d.SubjectID,
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func fromDocs(ds []feedbackDoc) []domain.Feedback {
	out := make([]domain.Feedback, 0, len(ds))
	for _, d := range ds {
		out = append(out, fromDoc(d))
	}
	return out
}

// ---- FeedbackRepository ----

func (c *Client) Save(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	var out feedbackDoc
	if f.ID == "" {
		if err := c.do(ctx, http.MethodPost, "/api/persistence/feedbacks", toDoc(f), &out); err != nil {
			return domain.Feedback{}, err
		}
	} else {
		if err := c.do(ctx, http.MethodPut, "/api/persistence/feedbacks/"+f.ID, toDoc(f), &out); err != nil {
			return domain.Feedback{}, err
		}
	}
	return fromDoc(out), nil
}

func (c *Client) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	var out feedbackDoc
	if err := c.do(ctx, http.MethodGet, "/api/persistence/feedbacks/"+id, nil, &out); err != nil {
		return domain.Feedback{}, err
	}
	return fromDoc(out), nil
}

func (c *Client) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, err := c.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) DeleteByID(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/persistence/feedbacks/"+id, nil, nil)
}

func (c *Client) FindAll(ctx context.Context) ([]domain.Feedback, error) {
	var out []feedbackDoc
	if err := c.do(ctx, http.MethodGet, "/api/persistence/feedbacks", nil, &out); err != nil {
		return nil, err
	}
	return fromDocs(out), nil
}

func (c *Client) FindByAuthor(ctx context.Context, authorID string) ([]domain.Feedback, error) {
	var out []feedbackDoc
	if err := c.do(ctx, http.MethodGet, "/api/persistence/feedbacks/user/"+authorID, nil, &out); err != nil {
		return nil, err
	}
	fs := fromDocs(out)
	sortByCreatedDesc(fs)
	return fs, nil
}

func (c *Client) FindBySubject(ctx context.Context, subjectID string) ([]domain.Feedback, error) {
	var out []feedbackDoc
	if err := c.do(ctx, http.MethodGet, "/api/persistence/feedbacks/recipe/"+subjectID, nil, &out); err != nil {
		return nil, err
	}
	fs := fromDocs(out)
	sortByCreatedDesc(fs)
	return fs, nil
}

// CountBySubject and AverageBySubject reduce over the fetched list; the
// Persistence service exposes no aggregate endpoint. Rounding still happens
// in the service layer so this path agrees with MySQL AVG and Mongo $avg.
func (c *Client) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	fs, err := c.FindBySubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	return int64(len(fs)), nil
}

func (c *Client) AverageBySubject(ctx context.Context, subjectID string) (*float64, error) {
	fs, err := c.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, nil
	}
	var sum int
	for _, f := range fs {
		sum += f.Rating
	}
	avg := float64(sum) / float64(len(fs))
	return &avg, nil
}

func (c *Client) FindRecent(ctx context.Context, n int) ([]domain.Feedback, error) {
	fs, err := c.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(fs)
	if len(fs) > n {
		fs = fs[:n]
	}
	return fs, nil
}

// ---- ReferenceChecker ----

func (c *Client) UserExists(ctx context.Context, authorID string) (bool, error) {
	return c.exists(ctx, "/api/persistence/users/"+authorID)
}

func (c *Client) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	return c.exists(ctx, "/api/persistence/recipes/"+subjectID)
}

func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, nil, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---- internals ----

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	url := c.base + path
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "recipe-feedback/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("persistence", path, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.DownstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("persistence", path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.DownstreamError{
			URL: url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b)),
		}
	}
}

func sortByCreatedDesc(fs []domain.Feedback) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].CreatedAt.After(fs[j].CreatedAt) })
}
