package handler

import (
	"context"
	"net/http"
	"time"

	"shelfmate/backend/internal/models"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// FriendRequestInput names the user to invite.
type FriendRequestInput struct {
	UserID uint `json:"user_id" binding:"required" example:"2"`
}

// FriendRequestResponse is a pending request with the user on the other side.
type FriendRequestResponse struct {
	ID          uint        `json:"id" example:"1"`
	InitiatorID uint        `json:"initiator_id" example:"1"`
	ApproverID  uint        `json:"approver_id" example:"2"`
	State       string      `json:"state" example:"pending"`
	User        UserSummary `json:"user"`
	CreatedAt   time.Time   `json:"created_at"`
}

// endregion

func toFriendRequest(f models.Friendship, viewer uint) FriendRequestResponse {
	other := f.UserLow
	if other.ID == viewer || other.ID == 0 {
		other = f.UserHigh
	}
	return FriendRequestResponse{
		ID:          f.ID,
		InitiatorID: f.InitiatorID,
		ApproverID:  f.ApproverID(),
		State:       string(f.State),
		User:        toUserSummary(other),
		CreatedAt:   f.CreatedAt,
	}
}

// GetFriends godoc
// @Summary      List friends
// @Description  Lists every user the viewer is friends with.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   UserSummary
// @Failure      401  {object}  ErrorResponse
// @Router       /friends [get]
func (h *Handler) GetFriends(c *gin.Context) {
	friends, err := h.svc.Friends.ListFriends(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserSummaries(friends))
}

// GetRequests godoc
// @Summary      List pending friend requests
// @Description  Lists pending requests addressed to the viewer (incoming) or sent by the viewer (outgoing).
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        direction query     string  true  "incoming or outgoing"
// @Success      200       {array}   FriendRequestResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      401       {object}  ErrorResponse
// @Router       /friends/requests [get]
func (h *Handler) GetRequests(c *gin.Context) {
	viewer := viewerID(c)
	direction := service.Direction(c.DefaultQuery("direction", string(service.Incoming)))

	requests, err := h.svc.Friends.ListRequests(c.Request.Context(), viewer, direction)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]FriendRequestResponse, len(requests))
	for i, r := range requests {
		out[i] = toFriendRequest(r, viewer)
	}
	c.JSON(http.StatusOK, out)
}

// SendRequest godoc
// @Summary      Send friend request
// @Description  Sends a friend request to another user. Fails if a request or a friendship already exists in either direction.
// @Tags         friendship
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body      FriendRequestInput true "Target user"
// @Success      201   {object}  FriendRequestResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse "Target user not found"
// @Failure      409   {object}  ErrorResponse "Request or friendship already exists"
// @Router       /friends/requests [post]
func (h *Handler) SendRequest(c *gin.Context) {
	var input FriendRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewer := viewerID(c)
	req, err := h.svc.Friends.SendRequest(c.Request.Context(), viewer, input.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	target, err := h.svc.Users.Get(c.Request.Context(), input.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := toFriendRequest(*req, viewer)
	resp.User = toUserSummary(*target)
	c.JSON(http.StatusCreated, resp)
}

// AcceptRequest godoc
// @Summary      Accept friend request
// @Description  Accepts a pending request addressed to the viewer. Anything else is a silent no-op reported as applied=false.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  AppliedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/{id}/approve [post]
func (h *Handler) AcceptRequest(c *gin.Context) {
	h.workflowStep(c, h.svc.Friends.Approve)
}

// DeclineRequest godoc
// @Summary      Deny friend request
// @Description  Removes a pending request addressed to the viewer.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  AppliedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/{id}/deny [post]
func (h *Handler) DeclineRequest(c *gin.Context) {
	h.workflowStep(c, h.svc.Friends.Deny)
}

// CancelRequest godoc
// @Summary      Cancel friend request
// @Description  Withdraws a pending request the viewer sent.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  AppliedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/{id}/cancel [post]
func (h *Handler) CancelRequest(c *gin.Context) {
	h.workflowStep(c, h.svc.Friends.Cancel)
}

// RemoveRelation godoc
// @Summary      Remove friend
// @Description  Ends the friendship with another user, whoever sent the original request.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Friend's user ID"
// @Success      200  {object}  AppliedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/{id} [delete]
func (h *Handler) RemoveRelation(c *gin.Context) {
	h.workflowStep(c, h.svc.Friends.RemoveFriend)
}

// workflowStep runs a mutation whose expected failures are silent: the
// response only says whether anything changed.
func (h *Handler) workflowStep(c *gin.Context, step func(ctx context.Context, id, actor uint) (service.Outcome, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	outcome, err := step(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AppliedResponse{Applied: outcome.Applied()})
}
