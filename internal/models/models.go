package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Friendship{},
		&Message{},
		&UserBook{},
		&BookJournal{},
		&Article{},
		&Comment{},
		&ArticleRating{},
		&CommentRating{},
	}
}
