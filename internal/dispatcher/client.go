// Package dispatcher talks to the external scheduled-send service that owns
// scheduled message records and executes them at their scheduled time.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the dispatcher
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dispatcher %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client calls the /api/schedule-message endpoints
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a dispatcher client. timeout bounds every single call.
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "dispatcher").Logger(),
	}
}

type submitResponse struct {
	ID string `json:"id"`
}

// Submit persists a new scheduled send and returns its id. The record is
// always submitted with status "scheduled".
func (c *Client) Submit(ctx context.Context, send *models.ScheduledSend) (string, error) {
	send.Status = models.SendStatusScheduled
	path := "/api/schedule-message/" + url.PathEscape(send.CompanyID)

	body, err := c.do(ctx, http.MethodPost, path, send)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode dispatcher response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("dispatcher returned no message id")
	}

	send.ID = resp.ID
	return resp.ID, nil
}

// Update replaces the full record of an existing scheduled send
func (c *Client) Update(ctx context.Context, send *models.ScheduledSend) error {
	if send.ID == "" {
		return fmt.Errorf("scheduled send has no id")
	}
	path := "/api/schedule-message/" + url.PathEscape(send.CompanyID) + "/" + url.PathEscape(send.ID)

	_, err := c.do(ctx, http.MethodPut, path, send)
	return err
}

// UpdateStatus transitions a scheduled send and writes the whole record back
func (c *Client) UpdateStatus(ctx context.Context, send *models.ScheduledSend, status models.SendStatus) error {
	previous := send.Status
	send.Status = status
	if err := c.Update(ctx, send); err != nil {
		send.Status = previous
		return err
	}
	return nil
}

// Cancel asks the dispatcher to drop the contact from every pending send of
// the template. A *StatusError means nothing was removed.
func (c *Client) Cancel(ctx context.Context, companyID, templateID, contactID string) error {
	path := fmt.Sprintf("/api/schedule-message/%s/template/%s/contact/%s",
		url.PathEscape(companyID), url.PathEscape(templateID), url.PathEscape(contactID))

	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatcher %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatcher response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("dispatcher call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(body))
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: detail}
	}

	return body, nil
}
