package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelfmate/backend/internal/booksearch"
	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookSearcher is the external catalog.
type BookSearcher interface {
	Search(ctx context.Context, query string) ([]booksearch.Volume, error)
}

// LibraryService tracks a user's books through the reading lifecycle and the
// journals written about them. Every call is scoped to the owner: another
// user's book behaves as if it did not exist.
type LibraryService struct {
	db     *gorm.DB
	logger *zap.Logger
	search BookSearcher
	now    func() time.Time
}

func newLibraryService(deps Deps) *LibraryService {
	return &LibraryService{
		db:     deps.DB,
		logger: deps.Logger.Named("library"),
		search: deps.Search,
		now:    time.Now,
	}
}

// SearchBooks queries the external catalog.
func (s *LibraryService) SearchBooks(ctx context.Context, query string) ([]booksearch.Volume, error) {
	if s.search == nil {
		return nil, ErrSearchUnavailable
	}
	volumes, err := s.search.Search(ctx, query)
	if errors.Is(err, booksearch.ErrEmptyQuery) {
		return nil, ErrInvalidInput
	}
	if err != nil {
		s.logger.Warn("book search failed", zap.String("query", query), zap.Error(err))
		if errors.Is(err, ErrSearchUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return volumes, nil
}

type AddBookInput struct {
	ExternalID string
	Title      string
	Authors    []string
	Length     int
	CoverURL   string
	Status     models.ReadingStatus
	Cover      []byte
	CoverMime  string
}

// AddBook puts a catalog book on the user's shelf, WantToRead unless told otherwise.
func (s *LibraryService) AddBook(ctx context.Context, userID uint, in AddBookInput) (*models.UserBook, error) {
	if strings.TrimSpace(in.Title) == "" || in.Length < 0 {
		return nil, ErrInvalidInput
	}
	if in.Status == "" {
		in.Status = models.StatusWantToRead
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	book := models.UserBook{
		UserID:     userID,
		ExternalID: in.ExternalID,
		Title:      strings.TrimSpace(in.Title),
		Authors:    strings.Join(in.Authors, ", "),
		Length:     in.Length,
		CoverURL:   in.CoverURL,
		CoverImage: in.Cover,
		CoverMime:  in.CoverMime,
		Status:     models.StatusWantToRead,
	}
	s.enterStatus(&book, in.Status)

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&book).Error; err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	return &book, nil
}

// ListBooks returns the user's shelf, optionally filtered by status. Cover
// bytes are not loaded.
func (s *LibraryService) ListBooks(ctx context.Context, userID uint, status models.ReadingStatus) ([]models.UserBook, error) {
	q := s.db.WithContext(ctx).Omit("cover_image").Where("user_id = ?", userID)
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}

	var books []models.UserBook
	if err := q.Order("updated_at DESC, id DESC").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook loads one of the user's books with its journal, if any.
func (s *LibraryService) GetBook(ctx context.Context, userID, bookID uint) (*models.UserBook, error) {
	var book models.UserBook
	err := s.db.WithContext(ctx).Omit("cover_image").Preload("Journal").
		Where("id = ? AND user_id = ?", bookID, userID).
		First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}
	return &book, nil
}

// Cover returns the stored cover image of the user's book.
func (s *LibraryService) Cover(ctx context.Context, userID, bookID uint) ([]byte, string, error) {
	book, err := s.owned(ctx, s.db.WithContext(ctx), userID, bookID)
	if err != nil {
		return nil, "", err
	}
	if len(book.CoverImage) == 0 {
		return nil, "", ErrNotFound
	}
	return book.CoverImage, book.CoverMime, nil
}

// SetCover replaces the stored cover image.
func (s *LibraryService) SetCover(ctx context.Context, userID, bookID uint, data []byte, mime string) error {
	if len(data) == 0 || mime == "" {
		return ErrInvalidInput
	}
	res := s.db.WithContext(ctx).Model(&models.UserBook{}).
		Where("id = ? AND user_id = ?", bookID, userID).
		Updates(map[string]any{"cover_image": data, "cover_mime": mime})
	if res.Error != nil {
		return fmt.Errorf("set cover: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangeStatus overwrites the book's status. Entering CurrentlyReading stamps
// the start date the first time; page and end date are left alone.
func (s *LibraryService) ChangeStatus(ctx context.Context, userID, bookID uint, status models.ReadingStatus) (*models.UserBook, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.mutate(ctx, userID, bookID, func(book *models.UserBook) {
		book.Status = status
		if status == models.StatusCurrentlyReading {
			s.stampStart(book)
		}
	})
}

// UpdateProgress records the current page, clamped to the book's length.
func (s *LibraryService) UpdateProgress(ctx context.Context, userID, bookID uint, page int) (*models.UserBook, error) {
	return s.mutate(ctx, userID, bookID, func(book *models.UserBook) {
		book.CurrentPage = clampPage(page, book.Length)
	})
}

// FinishBook marks the book read to the last page.
func (s *LibraryService) FinishBook(ctx context.Context, userID, bookID uint) (*models.UserBook, error) {
	return s.mutate(ctx, userID, bookID, s.finish)
}

// MarkAsDNF abandons the book where it stands.
func (s *LibraryService) MarkAsDNF(ctx context.Context, userID, bookID uint) (*models.UserBook, error) {
	return s.mutate(ctx, userID, bookID, s.abandon)
}

// enterStatus places a newly added book in status, with the same side effects
// the dedicated transitions would have had.
func (s *LibraryService) enterStatus(book *models.UserBook, status models.ReadingStatus) {
	switch status {
	case models.StatusFinished:
		s.finish(book)
	case models.StatusDnf:
		s.abandon(book)
	default:
		book.Status = status
		if status == models.StatusCurrentlyReading {
			s.stampStart(book)
		}
	}
}

func (s *LibraryService) stampStart(book *models.UserBook) {
	if book.StartDate == nil {
		now := s.now()
		book.StartDate = &now
	}
}

func (s *LibraryService) finish(book *models.UserBook) {
	now := s.now()
	book.Status = models.StatusFinished
	book.CurrentPage = book.Length
	book.EndDate = &now
}

func (s *LibraryService) abandon(book *models.UserBook) {
	now := s.now()
	book.Status = models.StatusDnf
	book.EndDate = &now
}

func (s *LibraryService) mutate(ctx context.Context, userID, bookID uint, apply func(*models.UserBook)) (*models.UserBook, error) {
	var book *models.UserBook
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		book, err = s.owned(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		apply(book)
		return tx.Omit(clause.Associations).Save(book).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update book %d: %w", bookID, err)
	}
	book.CoverImage = nil
	return book, nil
}

// RemoveBook deletes the book and its journal. It reports false when the
// book is missing or belongs to someone else.
func (s *LibraryService) RemoveBook(ctx context.Context, userID, bookID uint) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_book_id = ? AND user_id = ?", bookID, userID).
			Delete(&models.BookJournal{}).Error; err != nil {
			return fmt.Errorf("delete journal: %w", err)
		}
		res := tx.Where("id = ? AND user_id = ?", bookID, userID).Delete(&models.UserBook{})
		if res.Error != nil {
			return fmt.Errorf("delete book: %w", res.Error)
		}
		removed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// AddToJournal opens a journal for a finished or abandoned book, seeded with
// the book's reading dates.
func (s *LibraryService) AddToJournal(ctx context.Context, userID, bookID uint) (*models.BookJournal, error) {
	var journal models.BookJournal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.owned(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if !book.Status.Terminal() {
			return ErrJournalNotAllowed
		}

		var count int64
		if err := tx.Model(&models.BookJournal{}).Where("user_book_id = ?", book.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check journal: %w", err)
		}
		if count > 0 {
			return ErrJournalExists
		}

		journal = models.BookJournal{
			UserBookID: book.ID,
			UserID:     userID,
			StartDate:  book.StartDate,
			EndDate:    book.EndDate,
		}
		if err := tx.Create(&journal).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrJournalExists
			}
			return fmt.Errorf("create journal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &journal, nil
}

type JournalInput struct {
	Thoughts      string
	FavoriteQuote string
	Takeaways     string
	Rating        int
}

// EditJournal overwrites the journal's text fields and rating, then returns
// every journal of the owner.
func (s *LibraryService) EditJournal(ctx context.Context, userID, journalID uint, in JournalInput) ([]models.BookJournal, error) {
	if in.Rating < 0 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}
	res := s.db.WithContext(ctx).Model(&models.BookJournal{}).
		Where("id = ? AND user_id = ?", journalID, userID).
		Updates(map[string]any{
			"thoughts":       in.Thoughts,
			"favorite_quote": in.FavoriteQuote,
			"takeaways":      in.Takeaways,
			"rating":         in.Rating,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("edit journal %d: %w", journalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.ListJournals(ctx, userID)
}

// ListJournals returns the user's journals, most recently edited first.
func (s *LibraryService) ListJournals(ctx context.Context, userID uint) ([]models.BookJournal, error) {
	var journals []models.BookJournal
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&journals).Error; err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	return journals, nil
}

// DeleteJournal removes one journal, leaving the book in place.
func (s *LibraryService) DeleteJournal(ctx context.Context, userID, journalID uint) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", journalID, userID).Delete(&models.BookJournal{})
	if res.Error != nil {
		return false, fmt.Errorf("delete journal %d: %w", journalID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *LibraryService) owned(ctx context.Context, db *gorm.DB, userID, bookID uint) (*models.UserBook, error) {
	var book models.UserBook
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", bookID, userID).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}
	return &book, nil
}

func clampPage(page, length int) int {
	if page < 0 {
		return 0
	}
	if length > 0 && page > length {
		return length
	}
	return page
}
