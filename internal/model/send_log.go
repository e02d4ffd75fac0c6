package model

import (
	"time"
)

// SendStatus defines the outcome of a send attempt
type SendStatus string

const (
	SendStatusSent    SendStatus = "sent"
	SendStatusFailed  SendStatus = "failed"
	SendStatusPending SendStatus = "pending"
)

// SendLog records one attempt to deliver a rendered message
type SendLog struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ProductID string     `json:"product_id"`
	ConfigID  string     `json:"message_config_id"`
	Message   string     `json:"message_content"`
	SentAt    time.Time  `json:"sent_at"`
	Status    SendStatus `json:"status"`
	Error     string     `json:"error_message,omitempty"`
}
