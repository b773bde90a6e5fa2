package models

import "time"

// Article is a post about a book. Picture and BookTitle are copied from the
// UserBook when the article is created; later edits to the book do not show here.
type Article struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index"`
	UserBookID  uint   `gorm:"not null;index"`
	Title       string `gorm:"size:255;not null"`
	Description string
	BookTitle   string `gorm:"size:512"`
	Picture     []byte
	PictureMime string    `gorm:"size:100"`
	CreatedAt   time.Time `gorm:"index"`

	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Comments []Comment `gorm:"foreignKey:ArticleID"`
}

// Comment is a reply to an article.
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	ArticleID uint   `gorm:"not null;index"`
	UserID    uint   `gorm:"not null;index"`
	Text      string `gorm:"not null"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
}

// ArticleRating is a like edge. The composite primary key makes it unique per (article, user).
type ArticleRating struct {
	ArticleID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

// CommentRating is a like edge on a comment.
type CommentRating struct {
	CommentID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey;index"`
	CreatedAt time.Time
}
