package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/metrics"
	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventReceiveMessage is the realtime event pushed for every stored message.
const EventReceiveMessage = "ReceiveMessage"

// MessagePayload is what connected clients receive for a new message.
type MessagePayload struct {
	SenderID   uint      `json:"sender_id"`
	ReceiverID uint      `json:"receiver_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessagingService persists direct messages and relays them to connected clients.
type MessagingService struct {
	db       *gorm.DB
	logger   *zap.Logger
	notifier hub.Notifier
}

func newMessagingService(deps Deps) *MessagingService {
	return &MessagingService{
		db:       deps.DB,
		logger:   deps.Logger.Named("messages"),
		notifier: deps.Notifier,
	}
}

// Send stores a message and pushes it to the receiver and back to the sender.
// Blank text is ignored: nothing is stored, nothing is pushed, and both
// return values are nil. Push failures are logged; once the row is written
// the send has succeeded.
func (s *MessagingService) Send(ctx context.Context, senderID, receiverID uint, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sender, err := s.user(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if err := s.db.WithContext(ctx).Omit("Sender", "Receiver").Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	metrics.MessagesSent.Inc()

	s.push(msg, sender.Name())
	return &msg, nil
}

func (s *MessagingService) push(msg models.Message, senderName string) {
	if s.notifier == nil {
		return
	}
	event := hub.Event{
		Type: EventReceiveMessage,
		Payload: MessagePayload{
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			SenderName: senderName,
			Text:       msg.Text,
			Timestamp:  msg.CreatedAt,
		},
	}

	targets := []uint{msg.ReceiverID}
	if msg.SenderID != msg.ReceiverID {
		targets = append(targets, msg.SenderID)
	}
	for _, userID := range targets {
		if err := s.notifier.Notify(userID, event); err != nil {
			s.logger.Warn("realtime push failed",
				zap.Uint("message_id", msg.ID), zap.Uint("user_id", userID), zap.Error(err))
		}
	}
}

// History returns the conversation between a and b, oldest first.
func (s *MessagingService) History(ctx context.Context, a, b uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return messages, nil
}

// Conversations returns every user userID has exchanged messages with.
func (s *MessagingService) Conversations(ctx context.Context, userID uint) ([]models.User, error) {
	sent := s.db.Model(&models.Message{}).Select("receiver_id").Where("sender_id = ?", userID)
	received := s.db.Model(&models.Message{}).Select("sender_id").Where("receiver_id = ?", userID)

	var partners []models.User
	err := s.db.WithContext(ctx).
		Where("id <> ? AND (id IN (?) OR id IN (?))", userID, sent, received).
		Order("username").
		Find(&partners).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return partners, nil
}

func (s *MessagingService) user(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}
