package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundus.png")
	if err := os.WriteFile(path, []byte("fake-png"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestClient builds a client pointed at the given server with sleeps
// recorded instead of slept.
func newTestClient(detectorURL, classifierURL string, maxAttempts int) (*Client, *[]time.Duration) {
	c := NewClient(Config{
		DetectorURL:   detectorURL,
		ClassifierURL: classifierURL,
		Timeout:       5 * time.Second,
		MaxAttempts:   maxAttempts,
	}, zerolog.Nop())

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestDetect_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("expected multipart upload: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file field: %v", err)
		}
		w.Write([]byte(`{"detections":[{"label":"lesion","confidence":0.91,"boundingBox":{"x":10,"y":20,"width":30,"height":40}}],"output_image":"outputs/fundus-annotated.png"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	res, err := c.Detect(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(res.Detections))
	}
	d := res.Detections[0]
	if d.Label != "lesion" || d.Confidence != 0.91 || d.BoundingBox.Width != 30 {
		t.Errorf("detection not decoded: %+v", d)
	}
	if res.OutputImage != "outputs/fundus-annotated.png" {
		t.Errorf("output image not decoded: %s", res.OutputImage)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestDetect_EmptyDetectionsIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	res, err := c.Detect(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Detections) != 0 {
		t.Errorf("expected no detections, got %d", len(res.Detections))
	}
	if res.OutputImage != "" {
		t.Errorf("expected absent output image, got %q", res.OutputImage)
	}
}

func TestClassify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"severity_level":"medium"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	res, err := c.Classify(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SeverityLevel != "medium" {
		t.Errorf("expected medium, got %s", res.SeverityLevel)
	}
}

func TestCall_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"severity_level":"low"}`))
	}))
	defer srv.Close()

	c, slept := newTestClient(srv.URL, srv.URL, 3)
	res, err := c.Classify(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SeverityLevel != "low" {
		t.Errorf("unexpected severity: %s", res.SeverityLevel)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %d", len(want), len(*slept))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("backoff %d: expected %s, got %s", i, d, (*slept)[i])
		}
	}
}

func TestCall_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	_, err := c.Detect(context.Background(), testImage(t))
	if err == nil {
		t.Fatal("expected error")
	}
	var infErr *Error
	if !errors.As(err, &infErr) {
		t.Fatalf("expected *inference.Error, got %T", err)
	}
	if infErr.Model != "detector" || infErr.Attempts != 3 {
		t.Errorf("unexpected error detail: %+v", infErr)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestCall_InvalidResponseNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	_, err := c.Detect(context.Background(), testImage(t))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for invalid response, got %d", calls)
	}
}

func TestCall_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	_, err := c.Classify(context.Background(), testImage(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for 4xx response, got %d", calls)
	}
}

func TestCall_MissingImageSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, srv.URL, 3)
	_, err := c.Detect(context.Background(), "/nonexistent/fundus.png")
	if !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no network call, got %d", calls)
	}
}

func TestBackoff_Capped(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := backoff(tc.attempt); got != tc.want {
			t.Errorf("backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
