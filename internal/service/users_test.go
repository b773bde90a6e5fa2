package service

import (
	"context"
	"testing"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")

	_, err := f.svc.Users.Register(context.Background(), RegisterInput{
		Username: "alice2", Email: "ALICE@example.com", Password: "pw",
		SecurityQuestion: "q", SecurityAnswer: "a",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = f.svc.Users.Register(context.Background(), RegisterInput{Username: "dave"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []string{broker.SubjectUserRegistered}, f.events.subjects())
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	u, err := f.svc.Users.Authenticate(ctx, "alice", "password-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	u, err = f.svc.Users.Authenticate(ctx, "Alice@Example.com", "password-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.svc.Users.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Users.Authenticate(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPassword_WithSecurityAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	q, err := f.svc.Users.SecurityQuestion(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "First pet?", q)

	assert.ErrorIs(t, f.svc.Users.ResetPassword(ctx, "alice", "Fido", "new-pass"), ErrInvalidCredentials)
	require.NoError(t, f.svc.Users.ResetPassword(ctx, "alice", "  rex ", "new-pass"))

	_, err = f.svc.Users.Authenticate(ctx, "alice", "new-pass")
	assert.NoError(t, err)
}

func TestToggleBlock_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	admin, err := f.svc.Users.EnsureAdmin(ctx, RegisterInput{
		Username: "root", Email: "root@example.com", Password: "rootpw",
		SecurityQuestion: "q", SecurityAnswer: "a",
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	_, err = f.svc.Users.ToggleBlock(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Users.ToggleBlock(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	blocked, err := f.svc.Users.ToggleBlock(ctx, admin.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)

	_, err = f.svc.Users.Authenticate(ctx, "bob", "password-bob")
	assert.ErrorIs(t, err, ErrUserBlocked)

	unblocked, err := f.svc.Users.ToggleBlock(ctx, admin.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, unblocked.Blocked)

	again, err := f.svc.Users.EnsureAdmin(ctx, RegisterInput{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
}

func TestSearch_ExcludesAdminsAndCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.user(t, "alicia")
	f.user(t, "bob")
	f.user(t, "ali_baba")
	_, err := f.svc.Users.EnsureAdmin(ctx, RegisterInput{
		Username: "ali-admin", Email: "a@admin.io", Password: "pw", SecurityQuestion: "q", SecurityAnswer: "a",
	})
	require.NoError(t, err)

	users, total, err := f.svc.Users.Search(ctx, "ALI", alice.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	names := []string{users[0].Username, users[1].Username}
	assert.Equal(t, []string{"ali_baba", "alicia"}, names)

	// Underscore is matched literally.
	users, _, err = f.svc.Users.Search(ctx, "i_b", alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ali_baba", users[0].Username)
}

func TestDeleteAccount_RemovesEverythingOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	book := f.book(t, alice.ID, 100)
	_, err := f.svc.Library.FinishBook(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	_, err = f.svc.Library.AddToJournal(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	article, err := f.svc.Articles.Create(ctx, alice.ID, book.ID, "t", "")
	require.NoError(t, err)
	comment, err := f.svc.Articles.AddComment(ctx, bob.ID, article.ID, "hi")
	require.NoError(t, err)
	_, err = f.svc.Articles.ToggleCommentLike(ctx, comment.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Messages.Send(ctx, alice.ID, bob.ID, "bye")
	require.NoError(t, err)
	req, err := f.svc.Friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Friends.Approve(ctx, req.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Users.DeleteAccount(ctx, alice.ID))

	for _, model := range models.All() {
		if _, ok := model.(*models.User); ok {
			continue
		}
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
	_, err = f.svc.Users.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Users.Get(ctx, bob.ID)
	assert.NoError(t, err)
}
