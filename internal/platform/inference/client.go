// Package inference calls the two external model endpoints (object detector
// and severity classifier) over HTTP. Images are sent as multipart uploads;
// transient failures are retried with exponential backoff.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrImageNotFound means the image file was missing on the local
	// filesystem; no network call is attempted.
	ErrImageNotFound = errors.New("image file not found")
	// ErrInvalidResponse means the endpoint answered 200 but the body did
	// not have the expected shape. Never retried.
	ErrInvalidResponse = errors.New("invalid inference response")
)

// Error is the terminal failure returned once a call gives up, either from
// retry exhaustion or a non-retryable cause.
type Error struct {
	Model    string
	Attempts int
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s inference failed after %d attempt(s): %v", e.Model, e.Attempts, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// BoundingBox locates one detection within the image.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one finding from the detector model.
type Detection struct {
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// DetectResult is the validated detector response. OutputImage is the
// annotated-image reference the detector may return; empty means absent.
type DetectResult struct {
	Detections  []Detection
	OutputImage string
}

// ClassifyResult is the validated classifier response.
type ClassifyResult struct {
	SeverityLevel string
}

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3

	backoffBase = time.Second
	backoffCap  = 5 * time.Second
)

type Config struct {
	DetectorURL   string
	ClassifierURL string
	Timeout       time.Duration // per attempt
	MaxAttempts   int
}

type Client struct {
	cfg   Config
	http  *http.Client
	log   zerolog.Logger
	sleep func(time.Duration)
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{},
		log:   logger,
		sleep: time.Sleep,
	}
}

// Detect runs the object-detection model against the stored image.
func (c *Client) Detect(ctx context.Context, imagePath string) (*DetectResult, error) {
	var result DetectResult
	err := c.call(ctx, "detector", c.cfg.DetectorURL, imagePath, func(body []byte) error {
		var raw struct {
			Detections  *[]Detection `json:"detections"`
			OutputImage string       `json:"output_image"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if raw.Detections == nil {
			return fmt.Errorf("%w: missing detections field", ErrInvalidResponse)
		}
		result.Detections = *raw.Detections
		result.OutputImage = raw.OutputImage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Classify runs the severity-classification model against the stored image.
func (c *Client) Classify(ctx context.Context, imagePath string) (*ClassifyResult, error) {
	var result ClassifyResult
	err := c.call(ctx, "classifier", c.cfg.ClassifierURL, imagePath, func(body []byte) error {
		var raw struct {
			SeverityLevel string `json:"severity_level"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if raw.SeverityLevel == "" {
			return fmt.Errorf("%w: missing severity_level field", ErrInvalidResponse)
		}
		result.SeverityLevel = raw.SeverityLevel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// call runs the retry loop around one endpoint. decode both parses and
// validates the body; an ErrInvalidResponse from it stops the loop.
func (c *Client) call(ctx context.Context, model, url, imagePath string, decode func([]byte) error) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, imagePath)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		err := c.attempt(ctx, url, imagePath, decode)
		if err == nil {
			if attempt > 1 {
				c.log.Info().Str("model", model).Int("attempt", attempt).Msg("inference succeeded after retry")
			}
			return nil
		}

		c.log.Warn().
			Str("model", model).
			Int("attempt", attempt).
			Str("error", err.Error()).
			Msg("inference attempt failed")

		if !retryable(err) {
			return &Error{Model: model, Attempts: attempt, Cause: err}
		}
		lastErr = err

		if attempt < c.cfg.MaxAttempts {
			c.sleep(backoff(attempt))
			if ctx.Err() != nil {
				return &Error{Model: model, Attempts: attempt, Cause: ctx.Err()}
			}
		}
	}
	return &Error{Model: model, Attempts: c.cfg.MaxAttempts, Cause: lastErr}
}

// attempt issues a single multipart upload with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, url, imagePath string, decode func([]byte) error) error {
	body, contentType, err := buildUpload(imagePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	return decode(respBody)
}

func buildUpload(imagePath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrImageNotFound, imagePath)
		}
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.code)
}

// retryable reports whether a failed attempt may be tried again. Network
// errors, timeouts, and 5xx responses are transient; an invalid body or a
// 4xx response will not improve on retry.
func retryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrImageNotFound) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
