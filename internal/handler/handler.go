package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shelfmate/backend/internal/auth"
	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures the HTTP layer.
type Options struct {
	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool
	CORSOrigin   string
}

// Handler serves the REST, websocket and SSE endpoints on top of the services.
type Handler struct {
	svc      *service.Service
	hub      *hub.Hub
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(svc *service.Service, h *hub.Hub, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:    svc,
		hub:    h,
		opts:   opts,
		logger: logger.Named("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin(opts.CORSOrigin),
		},
	}
}

// region --- DTOs ---

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

// AppliedResponse reports whether a silent workflow step changed anything.
type AppliedResponse struct {
	Applied bool `json:"applied" example:"true"`
}

// endregion

// respondError maps service errors to HTTP status codes. Unexpected errors
// are logged and reported as 500 without detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrSelfRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrJournalExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrJournalNotAllowed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrUserBlocked),
		errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrSearchUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	if status == http.StatusBadGateway {
		c.JSON(status, gin.H{"error": "Book search is unavailable, try again later"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func viewerID(c *gin.Context) uint {
	return auth.UserID(c)
}

func sameOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed == "*" || origin == allowed || origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
