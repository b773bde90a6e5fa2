package service

import (
	"context"
	"sync"
	"testing"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_CreatesPendingEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatePending, req.State)
	assert.Equal(t, bob.ID, req.InitiatorID)
	assert.Equal(t, alice.ID, req.ApproverID())
	low, high := models.PairKey(alice.ID, bob.ID)
	assert.Equal(t, low, req.UserLowID)
	assert.Equal(t, high, req.UserHighID)
}

func TestSendRequest_ConflictsInBothDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	_, err = f.svc.Friends.SendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	var count int64
	require.NoError(t, f.db.Model(&models.Friendship{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSendRequest_ConflictWhenAlreadyFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	out, err := f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, out.Applied())

	_, err = f.svc.Friends.SendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
	_, err = f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestSendRequest_RejectsSelfAndUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.Friends.SendRequest(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfRequest)

	_, err = f.svc.Friends.SendRequest(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendRequest_ConcurrentOppositeRequestsLeaveOneEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		wg.Add(1)
		go func(i int, from, to uint) {
			defer wg.Done()
			_, errs[i] = f.svc.Friends.SendRequest(ctx, from, to)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRequest)
		}
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, f.db.Model(&models.Friendship{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestApprove_OnlyReceiverCanApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	out, err := f.svc.Friends.Approve(ctx, req.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, out)

	out, err = f.svc.Friends.Approve(ctx, req.ID, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, out)

	rel, err := f.svc.Friends.Relation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, rel.State)
}

func TestApprove_TwiceYieldsOneFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	first, err := f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	second, err := f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, first)
	assert.Equal(t, OutcomeNotFound, second)

	aliceFriends, err := f.svc.Friends.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	bobFriends, err := f.svc.Friends.ListFriends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, bob.ID, aliceFriends[0].ID)
	assert.Equal(t, alice.ID, bobFriends[0].ID)

	assert.Contains(t, f.events.subjects(), broker.SubjectFriendshipAccepted)
}

func TestDenyAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// The initiator cannot deny and the receiver cannot cancel.
	out, err := f.svc.Friends.Deny(ctx, req.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, out.Applied())
	out, err = f.svc.Friends.Cancel(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, out.Applied())

	out, err = f.svc.Friends.Deny(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied())

	rel, err := f.svc.Friends.Relation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, rel)

	// After a deny either side may ask again.
	req, err = f.svc.Friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	out, err = f.svc.Friends.Cancel(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied())
}

func TestDeny_AcceptedFriendshipIsUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)

	out, err := f.svc.Friends.Deny(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out)

	count, err := f.svc.Friends.CountFriends(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRemoveFriend_EitherSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)

	out, err := f.svc.Friends.RemoveFriend(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied())

	out, err = f.svc.Friends.RemoveFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, out.Applied())
}

func TestListRequests_ByDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	_, err := f.svc.Friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.svc.Friends.SendRequest(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	incoming, err := f.svc.Friends.ListRequests(ctx, alice.ID, Incoming)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, bob.ID, incoming[0].InitiatorID)

	outgoing, err := f.svc.Friends.ListRequests(ctx, alice.ID, Outgoing)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, carol.ID, outgoing[0].ApproverID())
	assert.NotEmpty(t, outgoing[0].UserLow.Username)

	_, err = f.svc.Friends.ListRequests(ctx, alice.ID, "sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
