package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToggleBlock godoc
// @Summary      Block or unblock a user
// @Description  Flips the blocked flag of an account. Blocked users cannot log in and their sessions stop working. Admins cannot block themselves.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  PrivateUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/users/{id}/block [post]
func (h *Handler) ToggleBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.svc.Users.ToggleBlock(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPrivateUser(user))
}
