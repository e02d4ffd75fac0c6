package model

import (
	"time"
)

const (
	// MinSendInterval is the lowest accepted interval in minutes
	MinSendInterval = 5
	// DefaultSendInterval is applied when a request leaves the interval empty
	DefaultSendInterval = 60
)

// BroadcastConfig is a saved template aimed at one target group
type BroadcastConfig struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	TargetGroup     string     `json:"whatsapp_group"`
	Template        string     `json:"message_template"`
	IntervalMinutes int        `json:"send_interval"`
	Active          bool       `json:"is_active"`
	LastSentAt      *time.Time `json:"last_sent,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BroadcastConfigInput carries the editable fields of a BroadcastConfig
type BroadcastConfigInput struct {
	TargetGroup     string `json:"whatsapp_group"`
	Template        string `json:"message_template"`
	IntervalMinutes int    `json:"send_interval"`
}

// Due reports whether the interval has elapsed since the last send
func (c *BroadcastConfig) Due(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.LastSentAt == nil {
		return true
	}
	return !now.Before(c.LastSentAt.Add(time.Duration(c.IntervalMinutes) * time.Minute))
}
