package handler

import (
	"context"
	"net/http"
	"time"

	"shelfmate/backend/internal/auth"
	"shelfmate/backend/internal/models"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CreateArticleInput publishes an article about one of the viewer's books.
type CreateArticleInput struct {
	BookID      uint   `json:"book_id" binding:"required" example:"1"`
	Title       string `json:"title" binding:"required,max=255" example:"Why Dune still holds up"`
	Description string `json:"description" example:"Sixty years on..."`
}

// CommentInput is a reply to an article.
type CommentInput struct {
	Text string `json:"text" binding:"required" example:"Great read!"`
}

// ArticleDTO is a feed entry.
type ArticleDTO struct {
	ID           uint        `json:"id" example:"1"`
	Title        string      `json:"title" example:"Why Dune still holds up"`
	Description  string      `json:"description"`
	BookTitle    string      `json:"book_title" example:"Dune"`
	HasPicture   bool        `json:"has_picture"`
	Author       UserSummary `json:"author"`
	LikeCount    int64       `json:"like_count" example:"3"`
	CommentCount int64       `json:"comment_count" example:"2"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CommentDTO is a comment as seen by the viewer.
type CommentDTO struct {
	ID        uint      `json:"id" example:"1"`
	UserID    uint      `json:"user_id" example:"2"`
	Author    string    `json:"author" example:"reader42"`
	Text      string    `json:"text" example:"Great read!"`
	LikeCount int64     `json:"like_count" example:"1"`
	LikedByMe bool      `json:"liked_by_me"`
	CreatedAt time.Time `json:"created_at"`
}

// ArticleDetailDTO is an article with its discussion.
type ArticleDetailDTO struct {
	ArticleDTO
	LikedByMe bool         `json:"liked_by_me"`
	Comments  []CommentDTO `json:"comments"`
}

// LikeResponse is the state after a like toggle.
type LikeResponse struct {
	Liked     bool  `json:"liked" example:"true"`
	LikeCount int64 `json:"like_count" example:"4"`
}

// PaginatedArticleResponse defines the structure for a page of the feed.
type PaginatedArticleResponse struct {
	Data []ArticleDTO   `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// endregion

func toArticleDTO(a models.Article, likes, comments int64) ArticleDTO {
	return ArticleDTO{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		BookTitle:    a.BookTitle,
		HasPicture:   a.PictureMime != "",
		Author:       toUserSummary(a.User),
		LikeCount:    likes,
		CommentCount: comments,
		CreatedAt:    a.CreatedAt,
	}
}

func toCommentDTO(c models.Comment, likes int64, likedByMe bool, author string) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		UserID:    c.UserID,
		Author:    author,
		Text:      c.Text,
		LikeCount: likes,
		LikedByMe: likedByMe,
		CreatedAt: c.CreatedAt,
	}
}

// GetFeed godoc
// @Summary      Article feed
// @Description  Lists articles from every user, newest first.
// @Tags         articles
// @Produce      json
// @Param        page  query     int  false  "Page number" default(1)
// @Param        limit query     int  false  "Items per page" default(10)
// @Success      200   {object}  PaginatedArticleResponse
// @Router       /articles [get]
func (h *Handler) GetFeed(c *gin.Context) {
	page, limit := pageParams(c)
	feed, total, err := h.svc.Articles.Feed(c.Request.Context(), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]ArticleDTO, len(feed))
	for i, a := range feed {
		out[i] = toArticleDTO(a.Article, a.Likes, a.Comments)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(out, total, page, limit))
}

// GetUserArticles godoc
// @Summary      Articles by a user
// @Description  Lists the articles a user wrote, newest first.
// @Tags         articles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {array}   ArticleDTO
// @Failure      400  {object}  ErrorResponse
// @Router       /users/{id}/articles [get]
func (h *Handler) GetUserArticles(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	articles, err := h.svc.Articles.ListByUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]ArticleDTO, len(articles))
	for i, a := range articles {
		out[i] = toArticleDTO(a.Article, a.Likes, a.Comments)
	}
	c.JSON(http.StatusOK, out)
}

// CreateArticle godoc
// @Summary      Publish an article
// @Description  Publishes an article about one of the viewer's books. The book's cover and title are copied into it.
// @Tags         articles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body      CreateArticleInput true "Article"
// @Success      201   {object}  ArticleDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse "Book not found"
// @Router       /articles [post]
func (h *Handler) CreateArticle(c *gin.Context) {
	var input CreateArticleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.svc.Articles.Create(c.Request.Context(), viewerID(c), input.BookID, input.Title, input.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user, ok := auth.CurrentUser(c); ok {
		article.User = *user
	}
	c.JSON(http.StatusCreated, toArticleDTO(*article, 0, 0))
}

// GetArticle godoc
// @Summary      Get an article
// @Description  Returns the article with its comments and like counts. Liked flags are set when the request is authenticated.
// @Tags         articles
// @Produce      json
// @Param        id   path      int  true  "Article ID"
// @Success      200  {object}  ArticleDetailDTO
// @Failure      404  {object}  ErrorResponse
// @Router       /articles/{id} [get]
func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.Articles.Get(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := ArticleDetailDTO{
		ArticleDTO: toArticleDTO(detail.Article, detail.Likes, int64(len(detail.Comments))),
		LikedByMe:  detail.LikedByMe,
		Comments:   make([]CommentDTO, len(detail.Comments)),
	}
	for i, cv := range detail.Comments {
		out.Comments[i] = toCommentDTO(cv.Comment, cv.Likes, cv.LikedByMe, cv.AuthorName)
	}
	c.JSON(http.StatusOK, out)
}

// GetArticlePicture godoc
// @Summary      Article picture
// @Tags         articles
// @Produce      image/jpeg
// @Produce      image/png
// @Param        id   path      int  true  "Article ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  ErrorResponse
// @Router       /articles/{id}/picture [get]
func (h *Handler) GetArticlePicture(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	data, mime, err := h.svc.Articles.Picture(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mime, data)
}

// DeleteArticle godoc
// @Summary      Delete an article
// @Description  Deletes one of the viewer's articles with its comments and likes.
// @Tags         articles
// @Security     BearerAuth
// @Param        id   path      int  true  "Article ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse "Missing or not the viewer's"
// @Router       /articles/{id} [delete]
func (h *Handler) DeleteArticle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.svc.Articles.DeleteArticle(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleArticleLike godoc
// @Summary      Like or unlike an article
// @Tags         articles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Article ID"
// @Success      200  {object}  LikeResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /articles/{id}/like [post]
func (h *Handler) ToggleArticleLike(c *gin.Context) {
	h.toggleLike(c, h.svc.Articles.ToggleArticleLike)
}

// ToggleCommentLike godoc
// @Summary      Like or unlike a comment
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Comment ID"
// @Success      200  {object}  LikeResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /comments/{id}/like [post]
func (h *Handler) ToggleCommentLike(c *gin.Context) {
	h.toggleLike(c, h.svc.Articles.ToggleCommentLike)
}

func (h *Handler) toggleLike(c *gin.Context, toggle func(ctx context.Context, id, userID uint) (service.LikeState, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	state, err := toggle(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LikeResponse{Liked: state.Liked, LikeCount: state.Count})
}

// AddComment godoc
// @Summary      Comment on an article
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "Article ID"
// @Param        input body      CommentInput  true  "Comment"
// @Success      201   {object}  CommentDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /articles/{id}/comments [post]
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.svc.Articles.AddComment(c.Request.Context(), viewerID(c), id, input.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	author := ""
	if user, ok := auth.CurrentUser(c); ok {
		author = user.Name()
	}
	c.JSON(http.StatusCreated, toCommentDTO(*comment, 0, false, author))
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Tags         comments
// @Security     BearerAuth
// @Param        id   path      int  true  "Comment ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse "Missing or not the viewer's"
// @Router       /comments/{id} [delete]
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.svc.Articles.DeleteComment(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
