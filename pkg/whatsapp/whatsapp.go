// Package whatsapp is a narrow client for the Meta Graph send-message API.
package whatsapp

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

type Config struct {
	URL           string        `split_words:"true" default:"https://graph.facebook.com/v20.0"`
	Token         string        `split_words:"true" required:"true"`
	PhoneNumberID string        `split_words:"true" required:"true"`
	Timeout       time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	httpClient    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("whatsapp url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("whatsapp token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp phone number id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         strings.TrimSpace(cfg.Token),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c *Client) SendMessage(ctx context.Context, phone, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return c.post(ctx, payload)
}

func (c *Client) SendTemplate(ctx context.Context, phone, name, language string, components []any) error {
	template := map[string]any{
		"name":     name,
		"language": map[string]string{"code": language},
	}
	if len(components) > 0 {
		template["components"] = components
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template":          template,
	}
	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode whatsapp payload: %w", err)
	}

	endpoint := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("whatsapp send failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
