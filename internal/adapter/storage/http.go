// Package storage implements a durable transcript store backed by a remote
// HTTP storage API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// TimestampLayout is the wire format for turn timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidSnapshot is returned when the storage API answers with a body
// that does not match the snapshot schema.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Client talks to the storage API.
type Client struct {
	baseURL    string
	apiKey     string
	loc        *time.Location
	httpClient *http.Client
	schema     *gojsonschema.Schema
}

// NewClient creates a storage API client. loc is the zone timestamps are
// rendered in.
func NewClient(baseURL, apiKey string, timeout time.Duration, loc *time.Location) (*Client, error) {
	if loc == nil {
		loc = time.UTC
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		loc:     loc,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		schema: schema,
	}, nil
}

type record struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type snapshot struct {
	Messages []record `json:"messages"`
}

// Load fetches the stored snapshot.
func (c *Client) Load(ctx context.Context) ([]domain.Turn, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
	}

	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	turns := make([]domain.Turn, 0, len(snap.Messages))
	for _, r := range snap.Messages {
		turns = append(turns, domain.Turn{
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			Timestamp: c.parseTimestamp(r.Timestamp),
		})
	}
	return turns, nil
}

// Save posts the snapshot. A failed POST to the base URL is retried once
// against {base}/history.
func (c *Client) Save(ctx context.Context, turns []domain.Turn) error {
	snap := snapshot{Messages: make([]record, 0, len(turns))}
	for _, t := range turns {
		r := record{Role: string(t.Role), Content: t.Content}
		if !t.Timestamp.IsZero() {
			r.Timestamp = t.Timestamp.In(c.loc).Format(TimestampLayout)
		}
		snap.Messages = append(snap.Messages, r)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, c.baseURL, body); err != nil {
		if _, retryErr := c.do(ctx, http.MethodPost, c.baseURL+"/history", body); retryErr != nil {
			return fmt.Errorf("save failed: %w (fallback: %v)", err, retryErr)
		}
	}
	return nil
}

// Delete removes the stored snapshot.
func (c *Client) Delete(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("storage API error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (c *Client) parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, c.loc); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
