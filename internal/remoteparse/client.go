// Package remoteparse is the client for the external structured-parse
// service. It owns the job lifecycle: upload the PDF, poll the job until
// a terminal status or the poll budget runs out, then retrieve the result
// payload. The client holds no package-level state; everything is
// injected so tests can substitute a fake server.
package remoteparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Format selects the result representation retrieved for a finished job.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// Wire statuses reported by GET /job/{id}.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

// Config holds the client's endpoint and polling parameters.
type Config struct {
	BaseURL string
	APIKey  string

	// PollInterval is the fixed delay between job status queries.
	PollInterval time.Duration

	// PollBudget bounds the total wall-clock time spent polling one job.
	PollBudget time.Duration

	// MaxPollFailures is how many consecutive failed poll requests are
	// tolerated before the job is treated as timed out.
	MaxPollFailures int

	// MinBytesPerPage drives the silent-truncation heuristic: a result
	// smaller than pages*MinBytesPerPage is rejected even on a 200.
	MinBytesPerPage int
}

// DefaultConfig returns polling parameters suitable for papers of a few
// dozen pages.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		PollInterval:    2 * time.Second,
		PollBudget:      90 * time.Second,
		MaxPollFailures: 3,
		MinBytesPerPage: 200,
	}
}

// Client talks to the remote parse service.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient builds a client. A nil httpClient gets a sane default; a nil
// logger discards.
func NewClient(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

// Parse runs the full job lifecycle for one document and returns the
// result payload. pageCount feeds the truncation heuristic. instruction,
// when non-empty, is passed to the service as a parsing directive (the
// structured academic mode); an empty instruction selects the provider's
// generic mode.
//
// Errors are typed for the fallback controller: *SubmitError,
// *TimeoutError, *TruncationError, *JobFailedError, or the context error
// when the owning document was deleted mid-run.
func (c *Client) Parse(ctx context.Context, pdfData []byte, filename string, pageCount int, format Format, instruction string) ([]byte, error) {
	jobID, err := c.submit(ctx, pdfData, filename, instruction)
	if err != nil {
		return nil, err
	}
	c.log.Debug("remote parse job submitted", "job_id", jobID, "file", filename)

	if err := c.awaitJob(ctx, jobID); err != nil {
		return nil, err
	}

	payload, err := c.retrieve(ctx, jobID, format)
	if err != nil {
		return nil, err
	}

	if expected := c.expectedSize(pageCount); len(payload) < expected {
		return nil, &TruncationError{Size: len(payload), Expected: expected}
	}
	return payload, nil
}

// submit uploads the PDF and returns the job id.
func (c *Client) submit(ctx context.Context, pdfData []byte, filename, instruction string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	if _, err := part.Write(pdfData); err != nil {
		return "", &SubmitError{Err: err}
	}
	if instruction != "" {
		if err := mw.WriteField("parsing_instruction", instruction); err != nil {
			return "", &SubmitError{Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return "", &SubmitError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload", &body)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &SubmitError{Err: fmt.Errorf("upload returned %d", resp.StatusCode)}
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SubmitError{Err: fmt.Errorf("decode upload response: %w", err)}
	}
	if out.JobID == "" {
		return "", &SubmitError{Err: fmt.Errorf("no job id in upload response")}
	}
	return out.JobID, nil
}

// awaitJob polls until the job succeeds, fails, or the budget runs out.
// Cancellation is honored at every poll boundary.
func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(c.cfg.PollBudget)
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, detail, err := c.pollOnce(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			c.log.Warn("poll failed", "job_id", jobID, "failures", failures, "error", err)
			if failures > c.cfg.MaxPollFailures {
				return &TimeoutError{Budget: c.cfg.PollBudget}
			}
		} else {
			failures = 0
			switch status {
			case statusSucceeded:
				return nil
			case statusFailed:
				return &JobFailedError{Status: status, Detail: detail}
			case statusQueued, statusProcessing:
				// keep polling
			default:
				return &JobFailedError{Status: status, Detail: detail}
			}
		}

		if time.Now().After(deadline) {
			return &TimeoutError{Budget: c.cfg.PollBudget}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, jobID string) (status, detail string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/job/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status query returned %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode status response: %w", err)
	}
	return out.Status, out.Error, nil
}

// retrieve fetches the finished job's payload. Some service versions wrap
// the content in a JSON envelope keyed by format; unwrap when present.
func (c *Client) retrieve(ctx context.Context, jobID string, format Format) ([]byte, error) {
	url := fmt.Sprintf("%s/job/%s/result/%s", c.cfg.BaseURL, jobID, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("result retrieval returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read result payload: %w", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if inner, ok := envelope[string(format)]; ok {
			var s string
			if err := json.Unmarshal(inner, &s); err == nil {
				return []byte(s), nil
			}
			return inner, nil
		}
	}
	return raw, nil
}

// expectedSize is the truncation threshold for a document of the given
// page count.
func (c *Client) expectedSize(pageCount int) int {
	if pageCount < 1 {
		pageCount = 1
	}
	return pageCount * c.cfg.MinBytesPerPage
}
