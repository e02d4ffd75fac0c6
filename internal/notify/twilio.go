package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/user/cesto-ofertas-go/internal/config"
)

// messageCreator is the part of the Twilio REST API used here
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends SMS and WhatsApp messages through the Twilio REST API
type Twilio struct {
	api          messageCreator
	phoneFrom    string
	whatsappFrom string
}

// NewTwilio creates a client from account credentials
func NewTwilio(cfg *config.TwilioConfig) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{
		api:          client.Api,
		phoneFrom:    cfg.PhoneNumber,
		whatsappFrom: cfg.WhatsAppNumber,
	}
}

// Notify sends an SMS or WhatsApp notice. Email is not supported.
func (t *Twilio) Notify(ctx context.Context, n Notice) error {
	switch n.Channel {
	case ChannelSMS:
		return t.send(ctx, E164(n.Recipient), t.phoneFrom, n.Body, "")
	case ChannelWhatsApp:
		return t.SendWhatsApp(ctx, n.Recipient, n.Body, "")
	default:
		return fmt.Errorf("twilio cannot deliver %s notices", n.Channel)
	}
}

// SendWhatsApp sends body, with an optional image, to a WhatsApp number
func (t *Twilio) SendWhatsApp(ctx context.Context, to, body, mediaURL string) error {
	return t.send(ctx, "whatsapp:"+E164(to), "whatsapp:"+E164(t.whatsappFrom), body, mediaURL)
}

func (t *Twilio) send(ctx context.Context, to, from, body, mediaURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)
	if mediaURL != "" {
		params.SetMediaUrl([]string{mediaURL})
	}

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send twilio message: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Info().Str("to", to).Str("sid", sid).Msg("Twilio message sent")
	return nil
}

// E164 turns a Brazilian display number such as "(11) 99999-9999" into "+5511999999999".
// Numbers already starting with "+" are only stripped of formatting.
func E164(phone string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(phone, "whatsapp:"))
	digits := onlyDigits(trimmed)
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	if len(digits) == 10 || len(digits) == 11 {
		return "+55" + digits
	}
	return "+" + digits
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
