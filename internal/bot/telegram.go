// Package bot wraps the Telegram Bot API used to deliver broadcasts to groups.
package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// captionLimit is the longest photo caption Telegram accepts
const captionLimit = 1024

// ErrCaptionUndelivered is returned when a photo was sent but its long caption,
// sent as a separate message, was not
var ErrCaptionUndelivered = errors.New("photo sent without its caption")

// sender is the part of the Bot API used here
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client wraps the Telegram Bot API for sending messages
type Client struct {
	api sender
}

// NewClient creates a new Telegram client with the given bot token
func NewClient(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return &Client{api: api}, nil
}

// ParseChatID accepts a numeric chat id ("-1001234") or a public @channel name
func ParseChatID(target string) (int64, string, error) {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "@") && len(target) > 1 {
		return 0, target, nil
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid telegram chat %q: %w", target, err)
	}
	return id, "", nil
}

// SendMessage sends a plain text message to a chat
func (c *Client) SendMessage(target string, text string) error {
	id, channel, err := ParseChatID(target)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, text)
	if channel != "" {
		msg = tgbotapi.NewMessageToChannel(channel, text)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendPhoto sends a photo with caption to a chat. Captions over the Telegram
// limit are sent as a separate text message after the photo.
func (c *Client) SendPhoto(target string, photoURL string, caption string) error {
	id, channel, err := ParseChatID(target)
	if err != nil {
		return err
	}
	var photo tgbotapi.PhotoConfig
	if channel != "" {
		photo = tgbotapi.PhotoConfig{BaseFile: tgbotapi.BaseFile{
			BaseChat: tgbotapi.BaseChat{ChannelUsername: channel},
			File:     tgbotapi.FileURL(photoURL),
		}}
	} else {
		photo = tgbotapi.NewPhoto(id, tgbotapi.FileURL(photoURL))
	}

	long := len([]rune(caption)) > captionLimit
	if !long {
		photo.Caption = caption
	}
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	if long {
		if err := c.SendMessage(target, caption); err != nil {
			return fmt.Errorf("%w: %w", ErrCaptionUndelivered, err)
		}
	}
	return nil
}
