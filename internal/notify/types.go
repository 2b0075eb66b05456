// Package notify defines the chat-facing message model and the dispatcher
// that fans messages out to the configured channels.
package notify

import "time"

// Card accent colors (24-bit RGB).
const (
	ColorRed    = 0xFF0000
	ColorGreen  = 0x00FF00
	ColorBlue   = 0x0000FF
	ColorYellow = 0xFFFF00
	ColorPurple = 0x800080
	ColorOrange = 0xFFA500
	ColorCyan   = 0x00FFFF
	ColorGray   = 0x808080
)

// Field is one name/value pair on a card. Inline is a layout hint; channels
// that have no concept of inline fields ignore it.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a channel-agnostic notification card. Each channel renders it
// with whatever fidelity its protocol allows.
type Message struct {
	Title     string
	Color     int
	Fields    []Field
	Footer    string
	Timestamp time.Time
}

// AddField appends a field and returns the message for chaining.
func (m *Message) AddField(name, value string, inline bool) *Message {
	m.Fields = append(m.Fields, Field{Name: name, Value: value, Inline: inline})
	return m
}
