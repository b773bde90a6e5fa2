package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService is the user directory: identity, profile, block status.
type UserService struct {
	db     *gorm.DB
	logger *zap.Logger
	events broker.Publisher
	cost   int
}

func newUserService(deps Deps) *UserService {
	return &UserService{
		db:     deps.DB,
		logger: deps.Logger.Named("users"),
		events: deps.Events,
		cost:   deps.BcryptCost,
	}
}

type RegisterInput struct {
	Username         string
	Email            string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
}

// Register creates a regular user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.create(ctx, in, models.RoleUser)
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, broker.SubjectUserRegistered, broker.UserRegistered{
		UserID:   user.ID,
		Username: user.Username,
	}); err != nil {
		s.logger.Warn("publish user registered", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// EnsureAdmin creates the admin account if no user with that username exists yet.
func (s *UserService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("username = ?", in.Username).First(&existing).Error
	if err == nil {
		if !existing.IsAdmin() {
			return nil, fmt.Errorf("user %q exists and is not an admin", in.Username)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return s.create(ctx, in, models.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" ||
		strings.TrimSpace(in.SecurityQuestion) == "" || normalizeAnswer(in.SecurityAnswer) == "" {
		return nil, ErrInvalidInput
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(normalizeAnswer(in.SecurityAnswer)), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash security answer: %w", err)
	}

	user := models.User{
		Username:           in.Username,
		Email:              in.Email,
		PasswordHash:       string(passwordHash),
		SecurityQuestion:   strings.TrimSpace(in.SecurityQuestion),
		SecurityAnswerHash: string(answerHash),
		Role:               role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate checks a username-or-email and password pair.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := s.byLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}
	return user, nil
}

// SecurityQuestion returns the fallback question for login.
func (s *UserService) SecurityQuestion(ctx context.Context, login string) (string, error) {
	user, err := s.byLogin(ctx, login)
	if err != nil {
		return "", err
	}
	return user.SecurityQuestion, nil
}

// ResetPassword replaces the password when the security answer matches.
func (s *UserService) ResetPassword(ctx context.Context, login, answer, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidInput
	}
	user, err := s.byLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SecurityAnswerHash), []byte(normalizeAnswer(answer))); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// UpdateProfile overwrites the editable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, displayName, bio string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{
		"display_name": strings.TrimSpace(displayName),
		"bio":          strings.TrimSpace(bio),
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, id)
}

// ToggleBlock flips the blocked flag of userID. Only admins may do this, and
// never on themselves.
func (s *UserService) ToggleBlock(ctx context.Context, adminID, userID uint) (*models.User, error) {
	admin, err := s.Get(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() || adminID == userID {
		return nil, ErrForbidden
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Blocked = !user.Blocked
	if err := s.db.WithContext(ctx).Model(user).Update("blocked", user.Blocked).Error; err != nil {
		return nil, fmt.Errorf("toggle block: %w", err)
	}
	s.logger.Info("user block toggled",
		zap.Uint("admin_id", adminID), zap.Uint("user_id", userID), zap.Bool("blocked", user.Blocked))
	return user, nil
}

// DeleteAccount removes the user and everything the user owns.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownArticles := tx.Model(&models.Article{}).Select("id").Where("user_id = ?", userID)
		doomedComments := tx.Model(&models.Comment{}).Select("id").
			Where("user_id = ? OR article_id IN (?)", userID, ownArticles)

		steps := []struct {
			name  string
			model any
			query string
			args  []any
		}{
			{"comment likes", &models.CommentRating{}, "user_id = ? OR comment_id IN (?)", []any{userID, doomedComments}},
			{"article likes", &models.ArticleRating{}, "user_id = ? OR article_id IN (?)", []any{userID, ownArticles}},
			{"comments", &models.Comment{}, "user_id = ? OR article_id IN (?)", []any{userID, ownArticles}},
			{"articles", &models.Article{}, "user_id = ?", []any{userID}},
			{"journals", &models.BookJournal{}, "user_id = ?", []any{userID}},
			{"books", &models.UserBook{}, "user_id = ?", []any{userID}},
			{"messages", &models.Message{}, "sender_id = ? OR receiver_id = ?", []any{userID, userID}},
			{"friendships", &models.Friendship{}, "user_low_id = ? OR user_high_id = ?", []any{userID, userID}},
			{"user", &models.User{}, "id = ?", []any{userID}},
		}
		for _, step := range steps {
			if err := tx.Where(step.query, step.args...).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		return nil
	})
}

// Search finds users whose username contains query, excluding admins and
// the caller.
func (s *UserService) Search(ctx context.Context, query string, excludeUserID uint, page, limit int) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role <> ? AND id <> ?", models.RoleAdmin, excludeUserID)
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where(`LOWER(username) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(query))+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := q.Order("username").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	return users, total, nil
}

func (s *UserService) byLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	return &user, nil
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
