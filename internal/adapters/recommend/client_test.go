package recommend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recipe_feedback/internal/adapters/recommend"
	"recipe_feedback/internal/domain"
)

func sampleBatch() []domain.Feedback {
	c := "tasty"
	return []domain.Feedback{{
		ID:        "1",
		AuthorID:  "user-1",
		SubjectID: "recipe-1",
		Rating:    5,
		Comment:   &c,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}}
}

func TestSubmitBatch_PostsJSONToUpdateModelPath(t *testing.T) {
	var gotPath string
	var gotCount int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotCount = len(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cl := recommend.New(ts.URL, 100)
	if err := cl.SubmitBatch(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotPath != "/api/recommendations/update-model" {
		t.Fatalf("wrong path: %s", gotPath)
	}
	if gotCount != 1 {
		t.Fatalf("expected 1 record in body, got %d", gotCount)
	}
}

func TestSubmitBatch_Non2xxIsDownstreamError(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cl := recommend.New(ts.URL, 100)
	err := cl.SubmitBatch(context.Background(), sampleBatch())

	var derr *domain.DownstreamError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DownstreamError, got %v", err)
	}
	if derr.URL != ts.URL+"/api/recommendations/update-model" {
		t.Fatalf("error must carry the target URL, got %q", derr.URL)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("exactly one attempt expected, got %d", hits)
	}
}

func TestSubmitBatch_ConnectionFailureIsDownstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := ts.URL
	ts.Close() // nothing listens anymore

	cl := recommend.New(base, 100)
	err := cl.SubmitBatch(context.Background(), sampleBatch())

	var derr *domain.DownstreamError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DownstreamError, got %v", err)
	}
}
