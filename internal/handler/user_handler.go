package handler

import (
	"net/http"
	"time"

	"shelfmate/backend/internal/auth"
	"shelfmate/backend/internal/models"
	"shelfmate/backend/internal/service"
	"shelfmate/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username         string `json:"username" binding:"required,min=3,max=50" example:"reader42"`
	Email            string `json:"email" binding:"required,email" example:"reader@example.com"`
	Password         string `json:"password" binding:"required,min=8" example:"password123"`
	SecurityQuestion string `json:"security_question" binding:"required" example:"Name of your first pet?"`
	SecurityAnswer   string `json:"security_answer" binding:"required" example:"Rex"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"reader42"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// ResetPasswordInput resets a password with the security answer.
type ResetPasswordInput struct {
	Login          string `json:"login" binding:"required" example:"reader42"`
	SecurityAnswer string `json:"security_answer" binding:"required" example:"Rex"`
	NewPassword    string `json:"new_password" binding:"required,min=8" example:"newpassword123"`
}

// UpdateProfileInput overwrites the editable profile fields.
type UpdateProfileInput struct {
	DisplayName string `json:"display_name" binding:"max=100" example:"Ursula"`
	Bio         string `json:"bio" binding:"max=1000" example:"Mostly science fiction."`
}

// TokenResponse is returned on register and login. The same token is set as an HttpOnly cookie.
type TokenResponse struct {
	Token string              `json:"token"`
	User  PrivateUserResponse `json:"user"`
}

// SecurityQuestionResponse carries the fallback question of an account.
type SecurityQuestionResponse struct {
	SecurityQuestion string `json:"security_question" example:"Name of your first pet?"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID           uint   `json:"id" example:"1"`
	Username     string `json:"username" example:"reader42"`
	DisplayName  string `json:"display_name" example:"Ursula"`
	Bio          string `json:"bio,omitempty"`
	FriendsCount int64  `json:"friends_count"`
	// RelationToMe is "friends", "request_sent", "request_received" or empty.
	RelationToMe string `json:"relation_to_me,omitempty" example:"friends"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	ID          uint      `json:"id" example:"1"`
	Username    string    `json:"username" example:"reader42"`
	Email       string    `json:"email" example:"reader@example.com"`
	DisplayName string    `json:"display_name" example:"Ursula"`
	Bio         string    `json:"bio"`
	Role        string    `json:"role" example:"user"`
	Blocked     bool      `json:"blocked"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserSummary is the short form of a user embedded in other responses.
type UserSummary struct {
	ID          uint   `json:"id" example:"1"`
	Username    string `json:"username" example:"reader42"`
	DisplayName string `json:"display_name" example:"Ursula"`
}

// PaginatedUserResponse defines the structure for a paginated list of users.
type PaginatedUserResponse struct {
	Data []UserSummary  `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// endregion

func toPrivateUser(u *models.User) PrivateUserResponse {
	return PrivateUserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.Name(),
		Bio:         u.Bio,
		Role:        string(u.Role),
		Blocked:     u.Blocked,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserSummary(u models.User) UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.Name()}
}

func toUserSummaries(users []models.User) []UserSummary {
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = toUserSummary(u)
	}
	return out
}

// region --- Auth Handlers ---

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a new user, sets the session cookie and returns the token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) RegisterUser(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Users.Register(c.Request.Context(), service.RegisterInput{
		Username:         input.Username,
		Email:            input.Email,
		Password:         input.Password,
		SecurityQuestion: input.SecurityQuestion,
		SecurityAnswer:   input.SecurityAnswer,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.startSession(c, http.StatusCreated, user)
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates a user with username/email and password, sets the session cookie and returns the token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      403  {object}  ErrorResponse "User is blocked"
// @Failure      500  {object}  ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) LoginUser(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), input.Login, input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.startSession(c, http.StatusOK, user)
}

// LogoutUser godoc
// @Summary      Log out
// @Description  Clears the session cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  MessageResponse
// @Router       /auth/logout [post]
func (h *Handler) LogoutUser(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetSecurityQuestion godoc
// @Summary      Get the security question
// @Description  Returns the security question of an account for password recovery.
// @Tags         auth
// @Produce      json
// @Param        login query     string  true  "Username or email"
// @Success      200   {object}  SecurityQuestionResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /auth/security-question [get]
func (h *Handler) GetSecurityQuestion(c *gin.Context) {
	question, err := h.svc.Users.SecurityQuestion(c.Request.Context(), c.Query("login"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SecurityQuestionResponse{SecurityQuestion: question})
}

// ResetPassword godoc
// @Summary      Reset password
// @Description  Replaces the password when the security answer matches.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body ResetPasswordInput true "Reset Info"
// @Success      200  {object}  MessageResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Users.ResetPassword(c.Request.Context(), input.Login, input.SecurityAnswer, input.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *Handler) startSession(c *gin.Context, status int, user *models.User) {
	token, err := jwt.GenerateToken(user.ID, h.opts.JWTSecret, h.opts.TokenTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.opts.TokenTTL.Seconds()), "/", "", h.opts.CookieSecure, true)
	c.JSON(status, TokenResponse{Token: token, User: toPrivateUser(user)})
}

// endregion

// region --- User Handlers ---

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by username with pagination. Admins and the caller are never listed.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query     string  false  "Search query for username"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(10)
// @Success      200   {object}  PaginatedUserResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /users [get]
func (h *Handler) SearchUsers(c *gin.Context) {
	page, limit := pageParams(c)

	users, total, err := h.svc.Users.Search(c.Request.Context(), c.Query("q"), viewerID(c), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(toUserSummaries(users), total, page, limit))
}

// GetMe godoc
// @Summary      Get current user
// @Description  Returns the profile of the authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.svc.Users.Get(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPrivateUser(user))
}

// UpdateMe godoc
// @Summary      Update current user
// @Description  Overwrites the display name and bio of the authenticated user.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Profile"
// @Success      200  {object}  PrivateUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Users.UpdateProfile(c.Request.Context(), viewerID(c), input.DisplayName, input.Bio)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPrivateUser(user))
}

// DeleteMe godoc
// @Summary      Delete account
// @Description  Deletes the authenticated user and everything they own, then clears the session.
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [delete]
func (h *Handler) DeleteMe(c *gin.Context) {
	if err := h.svc.Users.DeleteAccount(c.Request.Context(), viewerID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Fetches a user's public profile and their relation to the viewer.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) GetUserByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.svc.Users.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	friends, err := h.svc.Friends.CountFriends(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := PublicUserResponse{
		ID:           user.ID,
		Username:     user.Username,
		DisplayName:  user.Name(),
		Bio:          user.Bio,
		FriendsCount: friends,
	}

	viewer := viewerID(c)
	if viewer != id {
		rel, err := h.svc.Friends.Relation(ctx, viewer, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp.RelationToMe = relationLabel(rel, viewer)
	}
	c.JSON(http.StatusOK, resp)
}

// endregion

func relationLabel(rel *models.Friendship, viewer uint) string {
	switch {
	case rel == nil:
		return ""
	case rel.State == models.StateAccepted:
		return "friends"
	case rel.InitiatorID == viewer:
		return "request_sent"
	default:
		return "request_received"
	}
}
