package notify

import "context"

// Channel is one configured chat destination. Implementations must be safe
// for concurrent use; the dispatcher sends to all channels in parallel.
type Channel interface {
	// Name identifies the channel in logs and metrics ("discord",
	// "telegram", "matrix").
	Name() string

	// Send delivers a text-only card.
	Send(ctx context.Context, msg Message) error

	// SendWithAttachment delivers a card with an image attached. filename
	// is the suggested attachment name (e.g. "thumbnail.jpg").
	SendWithAttachment(ctx context.Context, msg Message, data []byte, filename string) error
}
