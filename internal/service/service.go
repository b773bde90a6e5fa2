package service

import (
	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/hub"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Notifier hub.Notifier
	Events   broker.Publisher
	Search   BookSearcher

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service groups the domain services the HTTP layer talks to.
type Service struct {
	Users    *UserService
	Friends  *FriendshipService
	Messages *MessagingService
	Library  *LibraryService
	Articles *ArticleService
}

func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = broker.Noop{}
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		Users:    newUserService(deps),
		Friends:  newFriendshipService(deps),
		Messages: newMessagingService(deps),
		Library:  newLibraryService(deps),
		Articles: newArticleService(deps),
	}
}
