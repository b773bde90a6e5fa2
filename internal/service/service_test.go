package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"shelfmate/backend/internal/booksearch"
	"shelfmate/backend/internal/database/dbtest"
	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type notification struct {
	UserID uint
	Event  hub.Event
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(userID uint, event hub.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{UserID: userID, Event: event})
	return n.err
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type published struct {
	Subject string
	Event   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Subject: subject, Event: event})
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Subject
	}
	return out
}

type stubSearcher struct {
	volumes []booksearch.Volume
	err     error
}

func (s stubSearcher) Search(_ context.Context, query string) ([]booksearch.Volume, error) {
	if query == "" {
		return nil, booksearch.ErrEmptyQuery
	}
	return s.volumes, s.err
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *recordingNotifier
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       dbtest.New(t),
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
	}
	f.svc = New(Deps{
		DB:         f.db,
		Notifier:   f.notifier,
		Events:     f.events,
		Search:     stubSearcher{volumes: []booksearch.Volume{{ExternalID: "x1", Title: "Dune", PageCount: 412}}},
		BcryptCost: bcrypt.MinCost,
	})
	return f
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.Users.Register(context.Background(), RegisterInput{
		Username:         name,
		Email:            fmt.Sprintf("%s@example.com", name),
		Password:         "password-" + name,
		SecurityQuestion: "First pet?",
		SecurityAnswer:   "Rex",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) book(t *testing.T, owner uint, length int) *models.UserBook {
	t.Helper()
	b, err := f.svc.Library.AddBook(context.Background(), owner, AddBookInput{
		ExternalID: "vol-1",
		Title:      "The Left Hand of Darkness",
		Authors:    []string{"Ursula K. Le Guin"},
		Length:     length,
		Cover:      []byte{0x89, 'P', 'N', 'G'},
		CoverMime:  "image/png",
	})
	require.NoError(t, err)
	return b
}
