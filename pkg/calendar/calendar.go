// Package calendar talks to the scheduling service that fronts the
// realtors' Google calendars.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	Token   string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ contractx.Calendar = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("calendar url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("calendar token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// BookedSlots lists the taken "HH:mm" slots for the realtor on a day.
func (c *Client) BookedSlots(ctx context.Context, realtorID, date string) ([]string, error) {
	var out struct {
		Booked []string `json:"booked"`
	}
	path := fmt.Sprintf("/realtors/%s/slots/booked?date=%s", url.PathEscape(realtorID), url.QueryEscape(date))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Booked, nil
}

// OpenSlots lists the free "HH:mm" slots for the realtor on a day.
func (c *Client) OpenSlots(ctx context.Context, realtorID, date string) ([]string, error) {
	var out struct {
		Open []string `json:"open"`
	}
	path := fmt.Sprintf("/realtors/%s/slots/open?date=%s", url.PathEscape(realtorID), url.QueryEscape(date))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Open, nil
}

// AddEvent creates the calendar event and returns its id.
func (c *Client) AddEvent(ctx context.Context, realtorID string, event contractx.CalendarEvent) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode calendar event: %w", err)
	}

	path := fmt.Sprintf("/realtors/%s/events", url.PathEscape(realtorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return "", fmt.Errorf("calendar event failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("calendar query failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode calendar response: %w", err)
	}
	return nil
}
