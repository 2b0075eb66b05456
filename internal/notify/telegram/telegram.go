// Package telegram delivers notification cards to a Telegram chat. Cards
// are flattened to HTML text; Telegram has no embed concept, so the color
// is dropped and fields become bolded lines.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"starwatch/internal/notify"
)

type Config struct {
	Token  string
	ChatID int64
}

type Channel struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func New(cfg Config) (*Channel, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Channel{
		bot:  bot,
		chat: &tele.Chat{ID: cfg.ChatID},
	}, nil
}

func (c *Channel) Name() string { return "telegram" }

func renderHTML(msg notify.Message) string {
	var b strings.Builder
	if msg.Title != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(msg.Title))
		b.WriteString("</b>\n")
	}
	for _, f := range msg.Fields {
		b.WriteString("\n<b>")
		b.WriteString(html.EscapeString(f.Name))
		b.WriteString(":</b> ")
		b.WriteString(html.EscapeString(f.Value))
	}
	if msg.Footer != "" {
		b.WriteString("\n\n<i>")
		b.WriteString(html.EscapeString(msg.Footer))
		b.WriteString("</i>")
	}
	if !msg.Timestamp.IsZero() {
		b.WriteString("\n<i>")
		b.WriteString(msg.Timestamp.Local().Format(time.RFC1123))
		b.WriteString("</i>")
	}
	return b.String()
}

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	_, err := c.bot.Send(c.chat, renderHTML(msg), &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

func (c *Channel) SendWithAttachment(ctx context.Context, msg notify.Message, data []byte, filename string) error {
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(data)),
		Caption: renderHTML(msg),
	}
	_, err := c.bot.Send(c.chat, photo, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
