package handler

import (
	"net/http"
	"time"

	"shelfmate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// SendMessageInput is a direct message to another user.
type SendMessageInput struct {
	ReceiverID uint   `json:"receiver_id" binding:"required" example:"2"`
	Text       string `json:"text" example:"Have you read Dune?"`
}

// MessageDTO is a stored direct message.
type MessageDTO struct {
	ID         uint      `json:"id" example:"1"`
	SenderID   uint      `json:"sender_id" example:"1"`
	ReceiverID uint      `json:"receiver_id" example:"2"`
	Text       string    `json:"text" example:"Have you read Dune?"`
	CreatedAt  time.Time `json:"created_at"`
}

// endregion

func toMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
}

// SendMessage godoc
// @Summary      Send a direct message
// @Description  Stores the message and pushes it to the receiver and the sender's other connections. Blank text is ignored and answered with 204.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body      SendMessageInput true "Message"
// @Success      201   {object}  MessageDTO
// @Success      204
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse "Receiver not found"
// @Router       /messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Messages.Send(c.Request.Context(), viewerID(c), input.ReceiverID, input.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(*msg))
}

// GetHistory godoc
// @Summary      Conversation history
// @Description  Returns every message exchanged with another user, oldest first.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        userID path      int  true  "Other user's ID"
// @Success      200    {array}   MessageDTO
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Router       /messages/{userID} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	other, ok := pathID(c, "userID")
	if !ok {
		return
	}

	messages, err := h.svc.Messages.History(c.Request.Context(), viewerID(c), other)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]MessageDTO, len(messages))
	for i, m := range messages {
		out[i] = toMessageDTO(m)
	}
	c.JSON(http.StatusOK, out)
}

// GetConversations godoc
// @Summary      List conversations
// @Description  Lists the users the viewer has exchanged messages with.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   UserSummary
// @Failure      401  {object}  ErrorResponse
// @Router       /messages [get]
func (h *Handler) GetConversations(c *gin.Context) {
	partners, err := h.svc.Messages.Conversations(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserSummaries(partners))
}
