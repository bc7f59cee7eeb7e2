// Package channels bridges chat platforms onto the message bus.
package channels

import (
	"context"

	"github.com/LoreClaw/LoreClaw/internal/bus"
)

// Channel is one chat surface the agent serves.
type Channel interface {
	// Name returns the channel name (e.g. "telegram").
	Name() string
	// Run owns the inbound session. It blocks, publishing updates to
	// the bus, until the context is cancelled (returns nil) or the
	// session is lost (returns the cause).
	Run(ctx context.Context) error
	// Send delivers one outbound message.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}
