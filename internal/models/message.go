package models

import "time"

// Message is an immutable direct message between two users.
type Message struct {
	ID         uint   `gorm:"primaryKey"`
	SenderID   uint   `gorm:"not null;index:idx_message_pair,priority:1"`
	ReceiverID uint   `gorm:"not null;index:idx_message_pair,priority:2;index"`
	Text       string `gorm:"not null"`
	// IsRead is stored for clients but nothing in the relay reads or updates it.
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`

	Sender   User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE;"`
	Receiver User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE;"`
}
