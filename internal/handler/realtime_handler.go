package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBuffer   = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 * 1024
	sseKeepAlive   = 25 * time.Second
	frameSendLabel = "SendMessage"
)

// inboundFrame is what clients send over the websocket.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeWS godoc
// @Summary      Realtime websocket
// @Description  Upgrades to a websocket. The server pushes ReceiveMessage events; clients may send {"type":"SendMessage","payload":{"receiver_id":2,"text":"hi"}}.
// @Tags         realtime
// @Security     BearerAuth
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Router       /ws [get]
func (h *Handler) ServeWS(c *gin.Context) {
	userID := viewerID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	log := h.logger.With(zap.Uint("user_id", userID), zap.String("conn_id", connID))
	log.Debug("websocket connected")

	client := hub.NewClient(clientBuffer)
	h.hub.Subscribe(userID, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, client, log)
	}()

	h.readPump(conn, userID, log)

	// Closing the client stops the write pump.
	h.hub.Unsubscribe(userID, client)
	<-done
	log.Debug("websocket disconnected")
}

func (h *Handler) readPump(conn *websocket.Conn, userID uint, log *zap.Logger) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("websocket read failed", zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != frameSendLabel {
			log.Debug("ignoring websocket frame", zap.Int("size", len(data)))
			continue
		}
		var in SendMessageInput
		if err := json.Unmarshal(frame.Payload, &in); err != nil || in.ReceiverID == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		_, err = h.svc.Messages.Send(ctx, userID, in.ReceiverID, in.Text)
		cancel()
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			log.Warn("websocket send failed", zap.Error(err))
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client hub.Client, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-client:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StreamEvents godoc
// @Summary      Realtime event stream
// @Description  Server-sent events carrying the same events as the websocket, for clients that cannot open one.
// @Tags         realtime
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Failure      401  {object}  ErrorResponse
// @Router       /messages/stream [get]
func (h *Handler) StreamEvents(c *gin.Context) {
	userID := viewerID(c)
	client := hub.NewClient(clientBuffer)
	h.hub.Subscribe(userID, client)
	defer h.hub.Unsubscribe(userID, client)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case data, ok := <-client:
			if !ok {
				return false
			}
			var ev hub.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				return true
			}
			c.SSEvent(ev.Type, json.RawMessage(data))
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}

// Online godoc
// @Summary      Presence check
// @Description  Reports whether a user has a live realtime connection on this instance.
// @Tags         realtime
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  map[string]bool
// @Router       /users/{id}/online [get]
func (h *Handler) Online(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": h.hub.Online(id)})
}
