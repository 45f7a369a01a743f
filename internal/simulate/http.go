package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// ErrBackpressure is returned when the service refuses an upload with 429.
var ErrBackpressure = errors.New("service applied backpressure")

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// Is reports a 429 as ErrBackpressure.
func (e *StatusError) Is(target error) bool {
	return target == ErrBackpressure && e.Code == http.StatusTooManyRequests
}

// Client talks to the service's HTTP API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, nil)
}

// Upload sends exports in one multipart request and returns the created jobs.
// When the service refuses with 429 the jobs queued before the refusal are
// returned along with an error matching ErrBackpressure.
func (c *Client) Upload(ctx context.Context, exports []Export) ([]model.ImportJob, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, e := range exports {
		part, err := mw.CreateFormFile("file", e.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create part: %w", err)
		}
		if _, err := part.Write(e.Content); err != nil {
			return nil, fmt.Errorf("failed to write part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/import/csv", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Jobs []model.ImportJob `json:"jobs"`
	}
	err = c.do(req, &resp)
	var status *StatusError
	if errors.As(err, &status) && errors.Is(err, ErrBackpressure) {
		_ = json.Unmarshal([]byte(status.Body), &resp)
		return resp.Jobs, err
	}
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job fetches an import job by id.
func (c *Client) Job(ctx context.Context, id string) (model.ImportJob, error) {
	var job model.ImportJob
	err := c.get(ctx, "/api/v1/import/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// Stats fetches the period report for athleteID over days.
func (c *Client) Stats(ctx context.Context, athleteID int64, days int) (model.PeriodReport, error) {
	var out model.PeriodReport
	err := c.get(ctx, "/api/v1/shots/stats", url.Values{
		"athlete_id": {strconv.FormatInt(athleteID, 10)},
		"period":     {strconv.Itoa(days) + "days"},
	}, &out)
	return out, err
}

// Recent fetches the day summaries for athleteID over days.
func (c *Client) Recent(ctx context.Context, athleteID int64, days int) ([]model.DayStats, error) {
	var out []model.DayStats
	err := c.get(ctx, "/api/v1/shots/recent-scores", url.Values{
		"athlete_id": {strconv.FormatInt(athleteID, 10)},
		"days":       {strconv.Itoa(days)},
	}, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	case out == nil:
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", req.URL.Path, err)
	}
	return nil
}
