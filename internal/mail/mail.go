// Package mail sends verification emails through the Resend HTTP API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authd"
)

const (
	defaultBaseURL = "https://api.resend.com"
	// maxBatch is the largest batch the Resend batch endpoint accepts.
	maxBatch = 100
)

// ErrRejected is returned when Resend answers with a non-2xx status.
var ErrRejected = errors.New("mail: rejected by provider")

// Config configures the Resend client.
type Config struct {
	APIKey  string
	From    string
	Subject string
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Client implements authd.Mailer.
type Client struct {
	config Config
	http   *http.Client
	logger *zap.Logger
}

type message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// New returns a Resend client. A nil logger discards output.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Subject == "" {
		cfg.Subject = "Verify your email"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "mail")),
	}
}

// SendVerification delivers batch. A single email goes to /emails, anything larger to
// /emails/batch in chunks of 100.
func (c *Client) SendVerification(ctx context.Context, batch []authd.VerificationEmail) error {
	switch len(batch) {
	case 0:
		return nil
	case 1:
		return c.post(ctx, "/emails", c.message(batch[0]))
	}

	for start := 0; start < len(batch); start += maxBatch {
		end := min(start+maxBatch, len(batch))
		msgs := make([]message, 0, end-start)
		for _, v := range batch[start:end] {
			msgs = append(msgs, c.message(v))
		}
		if err := c.post(ctx, "/emails/batch", msgs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) message(v authd.VerificationEmail) message {
	target := v.Link
	if target == "" {
		target = v.Code
	}
	return message{
		From:    c.config.From,
		To:      []string{v.To},
		Subject: c.config.Subject,
		HTML:    `<p>Confirm your email address:</p><p><a href="` + html.EscapeString(target) + `">` + html.EscapeString(target) + `</a></p>`,
		Text:    "Confirm your email address: " + target,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("resend rejected request",
			zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
