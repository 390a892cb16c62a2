package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DeviceEvent is one clock event from the access-control device API.
type DeviceEvent struct {
	EmployeeRef string    `json:"employee_ref"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	Direction   string    `json:"direction"` // "in" or "out"
}

// deviceEventsResponse is one page of the device event feed.
type deviceEventsResponse struct {
	Events     []DeviceEvent `json:"events"`
	NextCursor string        `json:"next_cursor"`
}

// DeviceClient pulls clock events from the external access-control device
// API. The feed is paged by an opaque cursor.
type DeviceClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
	log      zerolog.Logger
}

// NewDeviceClient creates a device API client.
func NewDeviceClient(baseURL, apiKey string, pageSize int, timeout time.Duration, log zerolog.Logger) *DeviceClient {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &DeviceClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "device_client").Logger(),
	}
}

// FetchEvents retrieves every clock event since the given time, following
// pagination until the feed is exhausted.
func (c *DeviceClient) FetchEvents(ctx context.Context, since time.Time) ([]DeviceEvent, error) {
	var events []DeviceEvent
	cursor := ""

	for {
		page, err := c.fetchPage(ctx, since, cursor)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Events...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.log.Info().Int("events", len(events)).Time("since", since).Msg("Fetched device events")
	return events, nil
}

func (c *DeviceClient) fetchPage(ctx context.Context, since time.Time, cursor string) (*deviceEventsResponse, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprintf("%d", c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build device request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch device events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device API returned status %d", resp.StatusCode)
	}

	var page deviceEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode device events: %w", err)
	}
	return &page, nil
}
