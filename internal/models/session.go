package models

import "time"

// ConversationSession stores the dialog state of one WhatsApp user.
// Data holds the JSON encoded dialog data.
type ConversationSession struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	State     string    `json:"state" gorm:"not null"`
	Data      string    `json:"data" gorm:"type:jsonb;not null"`
	TouchedAt time.Time `json:"updated_at" gorm:"column:updated_at;not null"`
}

// ProcessedMessage marks an inbound message id as already handled
type ProcessedMessage struct {
	MessageID   string    `json:"message_id" gorm:"primaryKey"`
	ProcessedAt time.Time `json:"processed_at" gorm:"not null;index"`
}
