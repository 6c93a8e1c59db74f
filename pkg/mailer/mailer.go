// Package mailer sends realtor notifications through the Mandrill
// messages/send API.
package mailer

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
)

const defaultFromEmail = "notifications@myrealvaluation.com"

type Config struct {
	URL       string        `split_words:"true" default:"https://mandrillapp.com/api/1.0"`
	APIKey    string        `split_words:"true" required:"true"`
	FromEmail string        `split_words:"true" default:"notifications@myrealvaluation.com"`
	Timeout   time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	apiKey     string
	fromEmail  string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("mailer url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mailer api key is required")
	}

	fromEmail := strings.TrimSpace(cfg.FromEmail)
	if fromEmail == "" {
		fromEmail = defaultFromEmail
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		fromEmail:  fromEmail,
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

// BookingNotification emails the realtor about a new booked lead.
func (c *Client) BookingNotification(ctx context.Context, realtorEmail, leadName, address, when, reportLink string) error {
	var body strings.Builder
	fmt.Fprintf(&body, "Lead: %s\n", leadName)
	if address != "" {
		fmt.Fprintf(&body, "Address: %s\n", address)
	}
	fmt.Fprintf(&body, "Appointment: %s\n", when)
	fmt.Fprintf(&body, "Report: %s\n", reportLink)

	payload := map[string]any{
		"key": c.apiKey,
		"message": map[string]any{
			"from_email": c.fromEmail,
			"subject":    "New Lead Booked: " + leadName,
			"text":       body.String(),
			"to": []map[string]string{
				{"email": realtorEmail, "type": "to"},
			},
		},
	}
	return c.post(ctx, "/messages/send.json", payload)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mailer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("mailer send failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
