// Package discord delivers notification cards to a Discord webhook as
// embeds.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"starwatch/internal/notify"
)

type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

type Channel struct {
	http       *http.Client
	webhookURL string
}

func New(cfg Config) (*Channel, error) {
	u := strings.TrimSpace(cfg.WebhookURL)
	if u == "" {
		return nil, fmt.Errorf("discord: webhook_url is required")
	}
	if !strings.HasPrefix(u, "https://") {
		return nil, fmt.Errorf("discord: webhook_url must be https")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Channel{
		http:       &http.Client{Timeout: timeout},
		webhookURL: u,
	}, nil
}

func (c *Channel) Name() string { return "discord" }

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title     string       `json:"title,omitempty"`
	Color     int          `json:"color,omitempty"`
	Fields    []embedField `json:"fields,omitempty"`
	Footer    *embedFooter `json:"footer,omitempty"`
	Image     *embedImage  `json:"image,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func buildEmbed(msg notify.Message) embed {
	e := embed{
		Title: msg.Title,
		Color: msg.Color,
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		e.Footer = &embedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return e
}

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	payload := webhookPayload{Embeds: []embed{buildEmbed(msg)}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// SendWithAttachment uploads the image alongside the embed and references
// it via the attachment:// scheme so it renders inside the card.
func (c *Channel) SendWithAttachment(ctx context.Context, msg notify.Message, data []byte, filename string) error {
	if filename == "" {
		filename = "attachment.jpg"
	}
	e := buildEmbed(msg)
	e.Image = &embedImage{URL: "attachment://" + filename}
	payload := webhookPayload{Embeds: []embed{e}}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload_json", string(payloadJSON)); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("files[0]", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *Channel) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord: webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
