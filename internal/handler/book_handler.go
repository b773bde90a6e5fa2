package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"shelfmate/backend/internal/booksearch"
	"shelfmate/backend/internal/models"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
)

const maxCoverSize = 5 << 20

// region --- DTOs ---

// AddBookInput puts a search result on the shelf.
type AddBookInput struct {
	ExternalID string   `json:"external_id" example:"zyTCAlFPjgYC"`
	Title      string   `json:"title" binding:"required" example:"Dune"`
	Authors    []string `json:"authors" example:"Frank Herbert"`
	Length     int      `json:"length" binding:"min=0" example:"412"`
	CoverURL   string   `json:"cover_url" example:"https://books.google.com/books/content?id=zyTCAlFPjgYC"`
	Status     string   `json:"status" enums:"WantToRead,CurrentlyReading,Finished,Dnf" example:"WantToRead"`
}

// ChangeStatusInput moves a book to another reading status.
type ChangeStatusInput struct {
	Status string `json:"status" binding:"required" enums:"WantToRead,CurrentlyReading,Finished,Dnf" example:"CurrentlyReading"`
}

// UpdateProgressInput records the current page.
type UpdateProgressInput struct {
	Page *int `json:"page" binding:"required" example:"50"`
}

// JournalInput overwrites a journal.
type JournalInput struct {
	Thoughts      string `json:"thoughts" example:"Slow start, great ending."`
	FavoriteQuote string `json:"favorite_quote" example:"Fear is the mind-killer."`
	Takeaways     string `json:"takeaways" example:"Ecology matters."`
	Rating        int    `json:"rating" example:"4"`
}

// BookDTO is a book on the user's shelf.
type BookDTO struct {
	ID          uint        `json:"id" example:"1"`
	ExternalID  string      `json:"external_id"`
	Title       string      `json:"title" example:"Dune"`
	Authors     string      `json:"authors" example:"Frank Herbert"`
	Length      int         `json:"length" example:"412"`
	CoverURL    string      `json:"cover_url,omitempty"`
	HasCover    bool        `json:"has_cover"`
	Status      string      `json:"status" example:"CurrentlyReading"`
	CurrentPage int         `json:"current_page" example:"50"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	Journal     *JournalDTO `json:"journal,omitempty"`
}

// JournalDTO is a reflection on a finished or abandoned book.
type JournalDTO struct {
	ID            uint       `json:"id" example:"1"`
	UserBookID    uint       `json:"user_book_id" example:"1"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Thoughts      string     `json:"thoughts"`
	FavoriteQuote string     `json:"favorite_quote"`
	Takeaways     string     `json:"takeaways"`
	Rating        int        `json:"rating" example:"4"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// endregion

func toBookDTO(b models.UserBook) BookDTO {
	dto := BookDTO{
		ID:          b.ID,
		ExternalID:  b.ExternalID,
		Title:       b.Title,
		Authors:     b.Authors,
		Length:      b.Length,
		CoverURL:    b.CoverURL,
		HasCover:    b.CoverMime != "",
		Status:      string(b.Status),
		CurrentPage: b.CurrentPage,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
	}
	if b.Journal != nil {
		j := toJournalDTO(*b.Journal)
		dto.Journal = &j
	}
	return dto
}

func toJournalDTO(j models.BookJournal) JournalDTO {
	return JournalDTO{
		ID:            j.ID,
		UserBookID:    j.UserBookID,
		StartDate:     j.StartDate,
		EndDate:       j.EndDate,
		Thoughts:      j.Thoughts,
		FavoriteQuote: j.FavoriteQuote,
		Takeaways:     j.Takeaways,
		Rating:        j.Rating,
		UpdatedAt:     j.UpdatedAt,
	}
}

func toJournalDTOs(journals []models.BookJournal) []JournalDTO {
	out := make([]JournalDTO, len(journals))
	for i, j := range journals {
		out[i] = toJournalDTO(j)
	}
	return out
}

// SearchBooks godoc
// @Summary      Search the book catalog
// @Description  Queries the external catalog. Results are cached for a short while.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Search terms"
// @Success      200  {array}   booksearch.Volume
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse "Catalog unavailable"
// @Router       /books/search [get]
func (h *Handler) SearchBooks(c *gin.Context) {
	volumes, err := h.svc.Library.SearchBooks(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if volumes == nil {
		volumes = []booksearch.Volume{}
	}
	c.JSON(http.StatusOK, volumes)
}

// AddBook godoc
// @Summary      Add a book
// @Description  Puts a book on the viewer's shelf, WantToRead unless another status is given.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body      AddBookInput true "Book"
// @Success      201   {object}  BookDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /books [post]
func (h *Handler) AddBook(c *gin.Context) {
	var input AddBookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.Library.AddBook(c.Request.Context(), viewerID(c), service.AddBookInput{
		ExternalID: input.ExternalID,
		Title:      input.Title,
		Authors:    input.Authors,
		Length:     input.Length,
		CoverURL:   input.CoverURL,
		Status:     models.ReadingStatus(input.Status),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookDTO(*book))
}

// GetBooks godoc
// @Summary      List books
// @Description  Lists the viewer's shelf, optionally filtered by status.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        status query     string  false  "WantToRead, CurrentlyReading, Finished or Dnf"
// @Success      200    {array}   BookDTO
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Router       /books [get]
func (h *Handler) GetBooks(c *gin.Context) {
	books, err := h.svc.Library.ListBooks(c.Request.Context(), viewerID(c), models.ReadingStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]BookDTO, len(books))
	for i, b := range books {
		out[i] = toBookDTO(b)
	}
	c.JSON(http.StatusOK, out)
}

// GetBookByID godoc
// @Summary      Get a book
// @Description  Returns one of the viewer's books with its journal.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  BookDTO
// @Failure      404  {object}  ErrorResponse
// @Router       /books/{id} [get]
func (h *Handler) GetBookByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	book, err := h.svc.Library.GetBook(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookDTO(*book))
}

// DeleteBook godoc
// @Summary      Remove a book
// @Description  Removes the book and its journal from the viewer's shelf.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /books/{id} [delete]
func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	removed, err := h.svc.Library.RemoveBook(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeStatus godoc
// @Summary      Change reading status
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Book ID"
// @Param        input body      ChangeStatusInput  true  "Status"
// @Success      200   {object}  BookDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /books/{id}/status [put]
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input ChangeStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.svc.Library.ChangeStatus(c.Request.Context(), viewerID(c), id, models.ReadingStatus(input.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookDTO(*book))
}

// UpdateProgress godoc
// @Summary      Update reading progress
// @Description  Sets the current page, clamped to the book's length.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                  true  "Book ID"
// @Param        input body      UpdateProgressInput  true  "Page"
// @Success      200   {object}  BookDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /books/{id}/progress [put]
func (h *Handler) UpdateProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input UpdateProgressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.svc.Library.UpdateProgress(c.Request.Context(), viewerID(c), id, *input.Page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookDTO(*book))
}

// FinishBook godoc
// @Summary      Finish a book
// @Description  Marks the book Finished, sets the current page to the last page and stamps the end date.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  BookDTO
// @Failure      404  {object}  ErrorResponse
// @Router       /books/{id}/finish [post]
func (h *Handler) FinishBook(c *gin.Context) {
	h.bookTransition(c, h.svc.Library.FinishBook)
}

// MarkAsDNF godoc
// @Summary      Abandon a book
// @Description  Marks the book Dnf and stamps the end date. Progress is kept.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  BookDTO
// @Failure      404  {object}  ErrorResponse
// @Router       /books/{id}/dnf [post]
func (h *Handler) MarkAsDNF(c *gin.Context) {
	h.bookTransition(c, h.svc.Library.MarkAsDNF)
}

func (h *Handler) bookTransition(c *gin.Context, step func(ctx context.Context, userID, bookID uint) (*models.UserBook, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	book, err := step(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookDTO(*book))
}

// GetBookCover godoc
// @Summary      Book cover image
// @Tags         books
// @Produce      image/jpeg
// @Produce      image/png
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  ErrorResponse
// @Router       /books/{id}/cover [get]
func (h *Handler) GetBookCover(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	data, mime, err := h.svc.Library.Cover(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, mime, data)
}

// UploadBookCover godoc
// @Summary      Upload a cover image
// @Description  Replaces the stored cover with the uploaded image (multipart field "cover").
// @Tags         books
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int   true  "Book ID"
// @Param        cover formData  file  true  "Image"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /books/{id}/cover [put]
func (h *Handler) UploadBookCover(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := c.FormFile("cover")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A cover file is required"})
		return
	}
	if file.Size > maxCoverSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cover image is too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxCoverSize))
	if err != nil {
		h.respondError(c, err)
		return
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cover must be an image"})
		return
	}
	if err := h.svc.Library.SetCover(c.Request.Context(), viewerID(c), id, data, mime); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cover updated"})
}

// region --- Journal Handlers ---

// AddToJournal godoc
// @Summary      Start a journal
// @Description  Opens a journal for a Finished or Dnf book, seeded with its reading dates.
// @Tags         journals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Book ID"
// @Success      201  {object}  JournalDTO
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Journal already exists"
// @Failure      422  {object}  ErrorResponse "Book is not finished or abandoned"
// @Router       /books/{id}/journal [post]
func (h *Handler) AddToJournal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	journal, err := h.svc.Library.AddToJournal(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJournalDTO(*journal))
}

// GetJournals godoc
// @Summary      List journals
// @Tags         journals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   JournalDTO
// @Router       /journals [get]
func (h *Handler) GetJournals(c *gin.Context) {
	journals, err := h.svc.Library.ListJournals(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalDTOs(journals))
}

// EditJournal godoc
// @Summary      Edit a journal
// @Description  Overwrites the journal fields and returns every journal of the viewer.
// @Tags         journals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "Journal ID"
// @Param        input body      JournalInput  true  "Journal"
// @Success      200   {array}   JournalDTO
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /journals/{id} [put]
func (h *Handler) EditJournal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input JournalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	journals, err := h.svc.Library.EditJournal(c.Request.Context(), viewerID(c), id, service.JournalInput{
		Thoughts:      input.Thoughts,
		FavoriteQuote: input.FavoriteQuote,
		Takeaways:     input.Takeaways,
		Rating:        input.Rating,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalDTOs(journals))
}

// DeleteJournal godoc
// @Summary      Delete a journal
// @Tags         journals
// @Security     BearerAuth
// @Param        id   path      int  true  "Journal ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /journals/{id} [delete]
func (h *Handler) DeleteJournal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.svc.Library.DeleteJournal(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Journal not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// endregion
