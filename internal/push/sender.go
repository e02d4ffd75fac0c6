package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/bot"
	"github.com/user/cesto-ofertas-go/internal/task"
)

// Message is a rendered broadcast for one target group
type Message struct {
	Target   string
	Text     string
	ImageURL string
}

// Sender delivers messages to a target group
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SimulatedSender never transmits: it waits Delay, logs the message and succeeds.
// Cancelling ctx during the delay aborts the send.
type SimulatedSender struct {
	Delay time.Duration
}

// Send simulates a delivery
func (s *SimulatedSender) Send(ctx context.Context, msg Message) error {
	if err := task.Sleep(ctx, s.Delay); err != nil {
		return err
	}
	log.Info().
		Str("group", msg.Target).
		Str("text", msg.Text).
		Msg("Simulated broadcast sent")
	return nil
}

// TelegramClient defines the interface for sending Telegram messages
type TelegramClient interface {
	SendMessage(target string, text string) error
	SendPhoto(target string, photoURL string, caption string) error
}

// TelegramSender delivers to Telegram chats, attaching the product image when present
type TelegramSender struct {
	Client TelegramClient
}

// Send tries a photo first and falls back to plain text. A photo that went out
// without its follow-up caption is not retried as text.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ImageURL != "" {
		err := s.Client.SendPhoto(msg.Target, msg.ImageURL, msg.Text)
		if err == nil {
			return nil
		}
		if errors.Is(err, bot.ErrCaptionUndelivered) {
			return err
		}
		log.Warn().Err(err).Str("group", msg.Target).Msg("Photo send failed, falling back to text")
	}
	return s.Client.SendMessage(msg.Target, msg.Text)
}

// WhatsAppClient sends WhatsApp messages
type WhatsAppClient interface {
	SendWhatsApp(ctx context.Context, to, body, mediaURL string) error
}

// WhatsAppSender delivers to a WhatsApp number through a messaging provider
type WhatsAppSender struct {
	Client WhatsAppClient
}

// Send delivers msg with its image as media
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if err := s.Client.SendWhatsApp(ctx, msg.Target, msg.Text, msg.ImageURL); err != nil {
		return fmt.Errorf("whatsapp delivery failed: %w", err)
	}
	return nil
}
