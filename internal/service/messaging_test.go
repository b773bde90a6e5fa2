package service

import (
	"context"
	"errors"
	"testing"

	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_StoresAndPushesToBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	msg, err := f.svc.Messages.Send(ctx, alice.ID, bob.ID, "have you read Dune?")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.NotZero(t, msg.ID)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, bob.ID, sent[0].UserID)
	assert.Equal(t, alice.ID, sent[1].UserID)

	payload, ok := sent[0].Event.Payload.(MessagePayload)
	require.True(t, ok)
	assert.Equal(t, EventReceiveMessage, sent[0].Event.Type)
	assert.Equal(t, "alice", payload.SenderName)
	assert.Equal(t, "have you read Dune?", payload.Text)
	assert.Equal(t, alice.ID, payload.SenderID)
	assert.Equal(t, bob.ID, payload.ReceiverID)
}

func TestSend_BlankTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	for _, text := range []string{"", "   ", "\n\t"} {
		msg, err := f.svc.Messages.Send(ctx, alice.ID, bob.ID, text)
		assert.NoError(t, err)
		assert.Nil(t, msg)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.notifier.all())
}

func TestSend_ToSelfPushesOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.svc.Messages.Send(context.Background(), alice.ID, alice.ID, "note to self")
	require.NoError(t, err)
	assert.Len(t, f.notifier.all(), 1)
}

func TestSend_PushFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("connection reset")
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	msg, err := f.svc.Messages.Send(context.Background(), alice.ID, bob.ID, "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)

	history, err := f.svc.Messages.History(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSend_UnknownReceiver(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.svc.Messages.Send(context.Background(), alice.ID, 4242, "hello?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.notifier.all())
}

func TestHistoryAndConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	for _, m := range []struct {
		from, to uint
		text     string
	}{
		{alice.ID, bob.ID, "one"},
		{bob.ID, alice.ID, "two"},
		{alice.ID, bob.ID, "three"},
		{carol.ID, alice.ID, "hi alice"},
		{bob.ID, carol.ID, "unrelated"},
	} {
		_, err := f.svc.Messages.Send(ctx, m.from, m.to, m.text)
		require.NoError(t, err)
	}

	history, err := f.svc.Messages.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	texts := make([]string, len(history))
	for i, m := range history {
		texts[i] = m.Text
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	partners, err := f.svc.Messages.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, partners, 2)
	assert.Equal(t, "bob", partners[0].Username)
	assert.Equal(t, "carol", partners[1].Username)
}
