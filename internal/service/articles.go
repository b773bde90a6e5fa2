package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArticleService is the social layer: articles about books, comments, likes.
type ArticleService struct {
	db     *gorm.DB
	logger *zap.Logger
	events broker.Publisher
}

func newArticleService(deps Deps) *ArticleService {
	return &ArticleService{
		db:     deps.DB,
		logger: deps.Logger.Named("articles"),
		events: deps.Events,
	}
}

// ArticleSummary is a feed entry.
type ArticleSummary struct {
	models.Article
	Likes    int64
	Comments int64
}

// CommentView is a comment with its like state for the viewer.
type CommentView struct {
	models.Comment
	Likes      int64
	LikedByMe  bool
	AuthorName string
}

// ArticleDetail is an article with its discussion, as seen by one viewer.
type ArticleDetail struct {
	Article    models.Article
	AuthorName string
	Likes      int64
	LikedByMe  bool
	Comments   []CommentView
}

// LikeState is the result of a like toggle.
type LikeState struct {
	Liked bool
	Count int64
}

// Create publishes an article about one of the user's books. The book's
// cover and title are copied into the article.
func (s *ArticleService) Create(ctx context.Context, userID, bookID uint, title, description string) (*models.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidInput
	}

	var book models.UserBook
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", bookID, userID).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}

	article := models.Article{
		UserID:      userID,
		UserBookID:  book.ID,
		Title:       title,
		Description: strings.TrimSpace(description),
		BookTitle:   book.Title,
		Picture:     book.CoverImage,
		PictureMime: book.CoverMime,
	}
	if err := s.db.WithContext(ctx).Omit("User", "Comments").Create(&article).Error; err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	if err := s.events.Publish(ctx, broker.SubjectArticleCreated, broker.ArticleCreated{
		ArticleID: article.ID,
		UserID:    userID,
		Title:     article.Title,
	}); err != nil {
		s.logger.Warn("publish article created", zap.Uint("article_id", article.ID), zap.Error(err))
	}
	return &article, nil
}

// Feed returns a page of articles, newest first, without pictures.
func (s *ArticleService) Feed(ctx context.Context, page, limit int) ([]ArticleSummary, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Article{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	var articles []models.Article
	if err := db.Omit("picture").Preload("User").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	summaries, err := s.summarize(ctx, articles)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (s *ArticleService) summarize(ctx context.Context, articles []models.Article) ([]ArticleSummary, error) {
	if len(articles) == 0 {
		return []ArticleSummary{}, nil
	}

	ids := make([]uint, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	likes, err := s.countBy(ctx, &models.ArticleRating{}, "article_id", ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.countBy(ctx, &models.Comment{}, "article_id", ids)
	if err != nil {
		return nil, err
	}

	out := make([]ArticleSummary, len(articles))
	for i, a := range articles {
		out[i] = ArticleSummary{Article: a, Likes: likes[a.ID], Comments: comments[a.ID]}
	}
	return out, nil
}

// Get returns the article with comments, counts and the viewer's likes.
func (s *ArticleService) Get(ctx context.Context, articleID, viewerID uint) (*ArticleDetail, error) {
	db := s.db.WithContext(ctx)

	var article models.Article
	err := db.Omit("picture").Preload("User").
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Preload("Comments.User").
		First(&article, articleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", articleID, err)
	}

	detail := &ArticleDetail{Article: article, AuthorName: article.User.Name()}
	if err := db.Model(&models.ArticleRating{}).Where("article_id = ?", articleID).Count(&detail.Likes).Error; err != nil {
		return nil, fmt.Errorf("count article likes: %w", err)
	}
	var mine int64
	if err := db.Model(&models.ArticleRating{}).
		Where("article_id = ? AND user_id = ?", articleID, viewerID).
		Count(&mine).Error; err != nil {
		return nil, fmt.Errorf("check article like: %w", err)
	}
	detail.LikedByMe = mine > 0

	ids := make([]uint, len(article.Comments))
	for i, c := range article.Comments {
		ids[i] = c.ID
	}
	commentLikes := map[uint]int64{}
	likedByMe := map[uint]bool{}
	if len(ids) > 0 {
		if commentLikes, err = s.countBy(ctx, &models.CommentRating{}, "comment_id", ids); err != nil {
			return nil, err
		}
		var liked []uint
		if err := db.Model(&models.CommentRating{}).
			Where("comment_id IN ? AND user_id = ?", ids, viewerID).
			Pluck("comment_id", &liked).Error; err != nil {
			return nil, fmt.Errorf("check comment likes: %w", err)
		}
		for _, id := range liked {
			likedByMe[id] = true
		}
	}

	detail.Comments = make([]CommentView, len(article.Comments))
	for i, c := range article.Comments {
		detail.Comments[i] = CommentView{
			Comment:    c,
			Likes:      commentLikes[c.ID],
			LikedByMe:  likedByMe[c.ID],
			AuthorName: c.User.Name(),
		}
	}
	return detail, nil
}

// Picture returns the article's snapshot image.
func (s *ArticleService) Picture(ctx context.Context, articleID uint) ([]byte, string, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Select("id", "picture", "picture_mime").First(&article, articleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get picture %d: %w", articleID, err)
	}
	if len(article.Picture) == 0 {
		return nil, "", ErrNotFound
	}
	return article.Picture, article.PictureMime, nil
}

// AddComment replies to an article.
func (s *ArticleService) AddComment(ctx context.Context, userID, articleID uint, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidInput
	}
	if err := s.exists(ctx, &models.Article{}, articleID); err != nil {
		return nil, err
	}

	comment := models.Comment{ArticleID: articleID, UserID: userID, Text: text}
	if err := s.db.WithContext(ctx).Omit("User").Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &comment, nil
}

// ToggleArticleLike likes the article, or unlikes it if already liked.
func (s *ArticleService) ToggleArticleLike(ctx context.Context, articleID, userID uint) (LikeState, error) {
	if err := s.exists(ctx, &models.Article{}, articleID); err != nil {
		return LikeState{}, err
	}
	return s.toggle(ctx, "article_id", articleID, userID,
		&models.ArticleRating{}, &models.ArticleRating{ArticleID: articleID, UserID: userID})
}

// ToggleCommentLike likes the comment, or unlikes it if already liked.
func (s *ArticleService) ToggleCommentLike(ctx context.Context, commentID, userID uint) (LikeState, error) {
	if err := s.exists(ctx, &models.Comment{}, commentID); err != nil {
		return LikeState{}, err
	}
	return s.toggle(ctx, "comment_id", commentID, userID,
		&models.CommentRating{}, &models.CommentRating{CommentID: commentID, UserID: userID})
}

// toggle deletes the like edge if present, otherwise inserts it. A duplicate
// key on insert means a concurrent toggle already liked it.
func (s *ArticleService) toggle(ctx context.Context, column string, entityID, userID uint, model, edge any) (LikeState, error) {
	db := s.db.WithContext(ctx)
	var state LikeState

	res := db.Where(column+" = ? AND user_id = ?", entityID, userID).Delete(model)
	if res.Error != nil {
		return state, fmt.Errorf("unlike: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := db.Create(edge).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return state, fmt.Errorf("like: %w", err)
		}
		state.Liked = true
	}

	if err := db.Model(model).Where(column+" = ?", entityID).Count(&state.Count).Error; err != nil {
		return state, fmt.Errorf("count likes: %w", err)
	}
	return state, nil
}

// DeleteArticle removes the user's article with its comments and likes. It
// reports false when the article is missing or not the user's.
func (s *ArticleService) DeleteArticle(ctx context.Context, userID, articleID uint) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("id = ? AND user_id = ?", articleID, userID).Count(&count).Error; err != nil {
			return fmt.Errorf("find article: %w", err)
		}
		if count == 0 {
			return nil
		}

		comments := tx.Model(&models.Comment{}).Select("id").Where("article_id = ?", articleID)
		if err := tx.Where("comment_id IN (?)", comments).Delete(&models.CommentRating{}).Error; err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		if err := tx.Where("article_id = ?", articleID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("article_id = ?", articleID).Delete(&models.ArticleRating{}).Error; err != nil {
			return fmt.Errorf("delete article likes: %w", err)
		}
		if err := tx.Delete(&models.Article{}, articleID).Error; err != nil {
			return fmt.Errorf("delete article: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// DeleteComment removes the user's comment and its likes.
func (s *ArticleService) DeleteComment(ctx context.Context, userID, commentID uint) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", commentID, userID).Delete(&models.Comment{})
		if res.Error != nil {
			return fmt.Errorf("delete comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.CommentRating{}).Error; err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ListByUser returns the articles written by userID, newest first, without pictures.
func (s *ArticleService) ListByUser(ctx context.Context, userID uint) ([]ArticleSummary, error) {
	var articles []models.Article
	if err := s.db.WithContext(ctx).Omit("picture").Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list user articles: %w", err)
	}
	return s.summarize(ctx, articles)
}

func (s *ArticleService) exists(ctx context.Context, model any, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("find %T %d: %w", model, id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ArticleService) countBy(ctx context.Context, model any, column string, ids []uint) (map[uint]int64, error) {
	var rows []struct {
		ID    uint
		Count int64
	}
	if err := s.db.WithContext(ctx).Model(model).
		Select(column+" AS id, COUNT(*) AS count").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ID] = r.Count
	}
	return counts, nil
}
