// Package notify delivers verification notices by email, SMS or WhatsApp.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/task"
)

// Channel is a delivery medium
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Notice is a short message for one recipient
type Notice struct {
	Channel   Channel
	Recipient string
	Subject   string
	Body      string
}

// Notifier delivers notices
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Simulated logs notices instead of transmitting them, after a fixed delay
type Simulated struct {
	Delay time.Duration
}

// Notify waits Delay (or until ctx is done) and logs the notice
func (s *Simulated) Notify(ctx context.Context, n Notice) error {
	if err := task.Sleep(ctx, s.Delay); err != nil {
		return err
	}
	log.Info().
		Str("channel", string(n.Channel)).
		Str("recipient", n.Recipient).
		Str("subject", n.Subject).
		Str("body", n.Body).
		Msg("Simulated notice delivered")
	return nil
}

// Router sends each channel through its own notifier, falling back to Default
type Router struct {
	Default  Notifier
	Channels map[Channel]Notifier
}

// Notify dispatches n by channel
func (r *Router) Notify(ctx context.Context, n Notice) error {
	if nf, ok := r.Channels[n.Channel]; ok && nf != nil {
		return nf.Notify(ctx, n)
	}
	return r.Default.Notify(ctx, n)
}
