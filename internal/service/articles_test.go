package service

import (
	"context"
	"testing"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateArticle_SnapshotsBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	book := f.book(t, alice.ID, 300)

	article, err := f.svc.Articles.Create(ctx, alice.ID, book.ID, "Winter on Gethen", "a review")
	require.NoError(t, err)
	assert.Equal(t, book.Title, article.BookTitle)
	assert.Equal(t, "image/png", article.PictureMime)

	// Later changes to the book do not reach the article.
	require.NoError(t, f.svc.Library.SetCover(ctx, alice.ID, book.ID, []byte{0xff, 0xd8}, "image/jpeg"))
	data, mime, err := f.svc.Articles.Picture(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	assert.Contains(t, f.events.subjects(), broker.SubjectArticleCreated)
}

func TestCreateArticle_RequiresOwnBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	book := f.book(t, alice.ID, 300)

	_, err := f.svc.Articles.Create(ctx, bob.ID, book.ID, "not mine", "")
	assert.ErrorIs(t, err, ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Article{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestToggleArticleLike_IsItsOwnInverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	article, err := f.svc.Articles.Create(ctx, alice.ID, f.book(t, alice.ID, 10).ID, "t", "")
	require.NoError(t, err)

	state, err := f.svc.Articles.ToggleArticleLike(ctx, article.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeState{Liked: true, Count: 1}, state)

	state, err = f.svc.Articles.ToggleArticleLike(ctx, article.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeState{Liked: true, Count: 2}, state)

	state, err = f.svc.Articles.ToggleArticleLike(ctx, article.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeState{Liked: false, Count: 1}, state)

	_, err = f.svc.Articles.ToggleArticleLike(ctx, 999, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleCommentLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	article, err := f.svc.Articles.Create(ctx, alice.ID, f.book(t, alice.ID, 10).ID, "t", "")
	require.NoError(t, err)
	comment, err := f.svc.Articles.AddComment(ctx, bob.ID, article.ID, "great read")
	require.NoError(t, err)

	state, err := f.svc.Articles.ToggleCommentLike(ctx, comment.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, state.Liked)

	detail, err := f.svc.Articles.Get(ctx, article.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.True(t, detail.Comments[0].LikedByMe)
	assert.EqualValues(t, 1, detail.Comments[0].Likes)
	assert.Equal(t, "bob", detail.Comments[0].AuthorName)

	state, err = f.svc.Articles.ToggleCommentLike(ctx, comment.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeState{Liked: false, Count: 0}, state)
}

func TestAddComment_RejectsBlankText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	article, err := f.svc.Articles.Create(ctx, alice.ID, f.book(t, alice.ID, 10).ID, "t", "")
	require.NoError(t, err)

	_, err = f.svc.Articles.AddComment(ctx, alice.ID, article.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Articles.AddComment(ctx, alice.ID, 404, "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeed_NewestFirstWithCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	book := f.book(t, alice.ID, 10)

	first, err := f.svc.Articles.Create(ctx, alice.ID, book.ID, "first", "")
	require.NoError(t, err)
	second, err := f.svc.Articles.Create(ctx, alice.ID, book.ID, "second", "")
	require.NoError(t, err)
	_, err = f.svc.Articles.ToggleArticleLike(ctx, first.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Articles.AddComment(ctx, bob.ID, first.ID, "nice")
	require.NoError(t, err)

	feed, total, err := f.svc.Articles.Feed(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, feed, 2)
	assert.Equal(t, second.ID, feed[0].ID)
	assert.Equal(t, first.ID, feed[1].ID)
	assert.EqualValues(t, 1, feed[1].Likes)
	assert.EqualValues(t, 1, feed[1].Comments)
	assert.Empty(t, feed[0].Picture)

	page2, _, err := f.svc.Articles.Feed(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, first.ID, page2[0].ID)
}

func TestDeleteArticle_OwnerOnlyAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	article, err := f.svc.Articles.Create(ctx, alice.ID, f.book(t, alice.ID, 10).ID, "t", "")
	require.NoError(t, err)
	comment, err := f.svc.Articles.AddComment(ctx, bob.ID, article.ID, "first!")
	require.NoError(t, err)
	_, err = f.svc.Articles.ToggleCommentLike(ctx, comment.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.svc.Articles.ToggleArticleLike(ctx, article.ID, bob.ID)
	require.NoError(t, err)

	deleted, err := f.svc.Articles.DeleteArticle(ctx, bob.ID, article.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.svc.Articles.DeleteArticle(ctx, alice.ID, article.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, model := range []any{&models.Article{}, &models.Comment{}, &models.ArticleRating{}, &models.CommentRating{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	deleted, err = f.svc.Articles.DeleteArticle(ctx, alice.ID, article.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteComment_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	article, err := f.svc.Articles.Create(ctx, alice.ID, f.book(t, alice.ID, 10).ID, "t", "")
	require.NoError(t, err)
	comment, err := f.svc.Articles.AddComment(ctx, bob.ID, article.ID, "mine")
	require.NoError(t, err)

	deleted, err := f.svc.Articles.DeleteComment(ctx, alice.ID, comment.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.svc.Articles.DeleteComment(ctx, bob.ID, comment.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}
