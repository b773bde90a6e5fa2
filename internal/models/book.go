package models

import "time"

// ReadingStatus is the position of a UserBook in the reading lifecycle.
type ReadingStatus string

const (
	StatusWantToRead       ReadingStatus = "WantToRead"
	StatusCurrentlyReading ReadingStatus = "CurrentlyReading"
	StatusFinished         ReadingStatus = "Finished"
	StatusDnf              ReadingStatus = "Dnf"
)

// Valid reports whether s is a known reading status.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusCurrentlyReading, StatusFinished, StatusDnf:
		return true
	}
	return false
}

// Terminal reports whether the book has been finished or abandoned.
func (s ReadingStatus) Terminal() bool {
	return s == StatusFinished || s == StatusDnf
}

// UserBook is a user's copy of a catalog book.
type UserBook struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index"`
	ExternalID  string `gorm:"size:64;index"`
	Title       string `gorm:"size:512;not null"`
	Authors     string `gorm:"size:512"`
	Length      int    `gorm:"not null;default:0"`
	CoverURL    string `gorm:"size:1024"`
	CoverImage  []byte
	CoverMime   string        `gorm:"size:100"`
	Status      ReadingStatus `gorm:"type:varchar(20);not null;default:'WantToRead';index"`
	CurrentPage int           `gorm:"not null;default:0"`
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User    User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Journal *BookJournal `gorm:"foreignKey:UserBookID;constraint:OnDelete:CASCADE;"`
}

// BookJournal is the reflection a user writes after finishing or abandoning a book.
type BookJournal struct {
	ID            uint `gorm:"primaryKey"`
	UserBookID    uint `gorm:"not null;uniqueIndex"`
	UserID        uint `gorm:"not null;index"`
	StartDate     *time.Time
	EndDate       *time.Time
	Thoughts      string
	FavoriteQuote string
	Takeaways     string
	Rating        int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
