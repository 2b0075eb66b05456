// Package matrix delivers notification cards to a Matrix room over the
// client-server API. Login happens lazily on first send; cards are rendered
// as m.room.message events with an HTML formatted body, attachments as
// uploaded media followed by an m.image event.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"starwatch/internal/notify"
)

type Config struct {
	HomeserverURL string
	Username      string
	Password      string
	RoomID        string
	Timeout       time.Duration
}

type Channel struct {
	http       *http.Client
	homeserver string
	username   string
	password   string
	roomID     string

	mu    sync.Mutex // serializes login
	token string

	txn atomic.Uint64
}

func New(cfg Config) (*Channel, error) {
	hs := strings.TrimRight(strings.TrimSpace(cfg.HomeserverURL), "/")
	if hs == "" {
		return nil, fmt.Errorf("matrix: homeserver_url is required")
	}
	if !strings.HasPrefix(hs, "http://") && !strings.HasPrefix(hs, "https://") {
		return nil, fmt.Errorf("matrix: homeserver_url must start with http:// or https://")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("matrix: username and password are required")
	}
	if !strings.HasPrefix(cfg.RoomID, "!") {
		return nil, fmt.Errorf("matrix: room_id must be a room ID (starting with '!'), got %q", cfg.RoomID)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Channel{
		http:       &http.Client{Timeout: timeout},
		homeserver: hs,
		username:   cfg.Username,
		password:   cfg.Password,
		roomID:     cfg.RoomID,
	}, nil
}

func (c *Channel) Name() string { return "matrix" }

type matrixError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

func (c *Channel) ensureLogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"type": "m.login.password",
		"identifier": map[string]any{
			"type": "m.id.user",
			"user": c.username,
		},
		"password": c.password,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.call(ctx, http.MethodPost, "/_matrix/client/v3/login", "", "application/json", bytes.NewReader(reqBody), &resp); err != nil {
		return "", fmt.Errorf("matrix: login: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("matrix: login returned no access token")
	}
	c.token = resp.AccessToken
	return c.token, nil
}

// invalidateToken drops the cached token so the next send logs in again.
func (c *Channel) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Channel) call(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.homeserver+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var me matrixError
		if json.Unmarshal(raw, &me) == nil && me.Code != "" {
			if resp.StatusCode == http.StatusUnauthorized {
				c.invalidateToken()
			}
			return fmt.Errorf("%s (%s)", me.Message, me.Code)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (c *Channel) sendEvent(ctx context.Context, token string, content map[string]any) error {
	body, err := json.Marshal(content)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%d",
		url.PathEscape(c.roomID), c.txn.Add(1))
	if err := c.call(ctx, http.MethodPut, path, token, "application/json", bytes.NewReader(body), nil); err != nil {
		return fmt.Errorf("matrix: send event: %w", err)
	}
	return nil
}

func renderBodies(msg notify.Message) (plain, formatted string) {
	var p, f strings.Builder
	if msg.Title != "" {
		p.WriteString(msg.Title)
		f.WriteString("<h4>")
		f.WriteString(html.EscapeString(msg.Title))
		f.WriteString("</h4>")
	}
	for _, fld := range msg.Fields {
		p.WriteString("\n")
		p.WriteString(fld.Name)
		p.WriteString(": ")
		p.WriteString(fld.Value)
		f.WriteString("<b>")
		f.WriteString(html.EscapeString(fld.Name))
		f.WriteString(":</b> ")
		f.WriteString(html.EscapeString(fld.Value))
		f.WriteString("<br/>")
	}
	if msg.Footer != "" {
		p.WriteString("\n")
		p.WriteString(msg.Footer)
		f.WriteString("<em>")
		f.WriteString(html.EscapeString(msg.Footer))
		f.WriteString("</em>")
	}
	return p.String(), f.String()
}

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	token, err := c.ensureLogin(ctx)
	if err != nil {
		return err
	}
	plain, formatted := renderBodies(msg)
	return c.sendEvent(ctx, token, map[string]any{
		"msgtype":        "m.text",
		"body":           plain,
		"format":         "org.matrix.custom.html",
		"formatted_body": formatted,
	})
}

func (c *Channel) SendWithAttachment(ctx context.Context, msg notify.Message, data []byte, filename string) error {
	token, err := c.ensureLogin(ctx)
	if err != nil {
		return err
	}
	if err := c.Send(ctx, msg); err != nil {
		return err
	}

	var upload struct {
		ContentURI string `json:"content_uri"`
	}
	path := "/_matrix/media/v3/upload?filename=" + url.QueryEscape(filename)
	if err := c.call(ctx, http.MethodPost, path, token, "image/jpeg", bytes.NewReader(data), &upload); err != nil {
		return fmt.Errorf("matrix: media upload: %w", err)
	}
	if upload.ContentURI == "" {
		return fmt.Errorf("matrix: media upload returned no content URI")
	}
	return c.sendEvent(ctx, token, map[string]any{
		"msgtype": "m.image",
		"body":    filename,
		"url":     upload.ContentURI,
		"info": map[string]any{
			"mimetype": "image/jpeg",
			"size":     len(data),
		},
	})
}
