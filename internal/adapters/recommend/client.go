package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"recipe_feedback/internal/adapters/observability"
	"recipe_feedback/internal/app"
	"recipe_feedback/internal/domain"
)

const updateModelPath = "/api/recommendations/update-model"

// Client pushes feedback batches to the recommendation service. One attempt
// per call: a failed forward is re-signaled as *domain.DownstreamError and
// retried by the operator, never here.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

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

func (c *Client) SubmitBatch(ctx context.Context, feedbacks []domain.Feedback) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	url := c.base + updateModelPath
	body, err := json.Marshal(app.ToResponseList(feedbacks))
	if err != nil {
		return &domain.DownstreamError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &domain.DownstreamError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "recipe-feedback/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("recommendation", updateModelPath, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.DownstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("recommendation", updateModelPath, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.DownstreamError{
			URL: url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
