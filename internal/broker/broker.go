// Package broker publishes domain events to NATS JetStream.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName     = "SHELFMATE"
	SubjectPattern = "shelfmate.>"

	SubjectUserRegistered     = "shelfmate.user.registered"
	SubjectFriendshipAccepted = "shelfmate.friendship.accepted"
	SubjectArticleCreated     = "shelfmate.article.created"
)

// Publisher publishes a JSON-encoded event on subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

type UserRegistered struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

type FriendshipAccepted struct {
	FriendshipID uint `json:"friendship_id"`
	InitiatorID  uint `json:"initiator_id"`
	ApproverID   uint `json:"approver_id"`
}

type ArticleCreated struct {
	ArticleID uint   `json:"article_id"`
	UserID    uint   `json:"user_id"`
	Title     string `json:"title"`
}

// NatsBroker publishes to a JetStream stream that it creates on startup.
type NatsBroker struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNatsBroker connects to url and makes sure the stream exists (idempotent).
func NewNatsBroker(ctx context.Context, url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url, nats.Name("shelfmate"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{nc: nc, js: js}, nil
}

func (b *NatsBroker) Publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (b *NatsBroker) Close() error {
	return b.nc.Drain()
}

// Noop discards events. Used when NATS_URL is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
