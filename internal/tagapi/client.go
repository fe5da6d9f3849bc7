// Package tagapi adds and removes contact tags through the external contact
// service.
package tagapi

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

// Client calls POST /api/contacts/{companyId}/{contactId}/tags/{add|remove}
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        zerolog.Logger
}

// NewClient creates a tag API client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        log.With().Str("component", "tagapi").Logger(),
	}
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// Apply performs one tag mutation. An empty tag list is a no-op.
func (c *Client) Apply(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	if action != models.TagActionAdd && action != models.TagActionRemove {
		return fmt.Errorf("unknown tag action %q", action)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(tagsRequest{Tags: tags})
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/contacts/%s/%s/tags/%s",
		c.baseURL, url.PathEscape(companyID), url.PathEscape(contactID), action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tag api %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("tag api %s returned %d: %s", action, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	c.log.Debug().
		Str("contact_id", contactID).
		Str("action", string(action)).
		Strs("tags", tags).
		Msg("tags applied")
	return nil
}
