package handler

import (
	"io"
	"net/http"
	"time"

	"shelfmate/backend/internal/auth"
	"shelfmate/backend/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// InitRoutes builds the engine with every public route mounted.
func (h *Handler) InitRoutes() *gin.Engine {
	r := gin.New()
	r.Use(h.requestLogger(), h.recovery(), metrics.Middleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{h.opts.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	requireAuth := auth.AuthMiddleware(h.opts.JWTSecret, h.svc.Users, h.logger)
	optionalAuth := auth.OptionalAuthMiddleware(h.opts.JWTSecret)

	v1 := r.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", h.RegisterUser)
			authRoutes.POST("/login", h.LoginUser)
			authRoutes.POST("/logout", h.LogoutUser)
			authRoutes.GET("/security-question", h.GetSecurityQuestion)
			authRoutes.POST("/reset-password", h.ResetPassword)
		}

		users := v1.Group("/users", requireAuth)
		{
			users.GET("", h.SearchUsers) // Must be before /:id
			users.GET("/me", h.GetMe)
			users.PUT("/me", h.UpdateMe)
			users.DELETE("/me", h.DeleteMe)
			users.GET("/:id", h.GetUserByID)
			users.GET("/:id/online", h.Online)
			users.GET("/:id/articles", h.GetUserArticles)
		}

		friends := v1.Group("/friends", requireAuth)
		{
			friends.GET("", h.GetFriends)
			friends.DELETE("/:id", h.RemoveRelation)
			friends.GET("/requests", h.GetRequests)
			friends.POST("/requests", h.SendRequest)
			friends.POST("/requests/:id/approve", h.AcceptRequest)
			friends.POST("/requests/:id/deny", h.DeclineRequest)
			friends.POST("/requests/:id/cancel", h.CancelRequest)
		}

		messages := v1.Group("/messages", requireAuth)
		{
			messages.POST("", h.SendMessage)
			messages.GET("", h.GetConversations)
			messages.GET("/stream", h.StreamEvents) // Must be before /:userID
			messages.GET("/:userID", h.GetHistory)
		}
		v1.GET("/ws", requireAuth, h.ServeWS)

		books := v1.Group("/books", requireAuth)
		{
			books.GET("/search", h.SearchBooks)
			books.GET("", h.GetBooks)
			books.POST("", h.AddBook)
			books.GET("/:id", h.GetBookByID)
			books.DELETE("/:id", h.DeleteBook)
			books.PUT("/:id/status", h.ChangeStatus)
			books.PUT("/:id/progress", h.UpdateProgress)
			books.GET("/:id/cover", h.GetBookCover)
			books.PUT("/:id/cover", h.UploadBookCover)
			books.POST("/:id/finish", h.FinishBook)
			books.POST("/:id/dnf", h.MarkAsDNF)
			books.POST("/:id/journal", h.AddToJournal)
		}

		journals := v1.Group("/journals", requireAuth)
		{
			journals.GET("", h.GetJournals)
			journals.PUT("/:id", h.EditJournal)
			journals.DELETE("/:id", h.DeleteJournal)
		}

		articles := v1.Group("/articles")
		{
			// Reading the feed does not need a session; likes are flagged when one is present.
			articles.GET("", optionalAuth, h.GetFeed)
			articles.GET("/:id", optionalAuth, h.GetArticle)
			articles.GET("/:id/picture", h.GetArticlePicture)

			articles.POST("", requireAuth, h.CreateArticle)
			articles.DELETE("/:id", requireAuth, h.DeleteArticle)
			articles.POST("/:id/like", requireAuth, h.ToggleArticleLike)
			articles.POST("/:id/comments", requireAuth, h.AddComment)
		}

		comments := v1.Group("/comments", requireAuth)
		{
			comments.DELETE("/:id", h.DeleteComment)
			comments.POST("/:id/like", h.ToggleCommentLike)
		}

		admin := v1.Group("/admin", requireAuth, auth.AdminMiddleware())
		{
			admin.POST("/users/:id/block", h.ToggleBlock)
		}
	}

	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := viewerID(c); id != 0 {
			fields = append(fields, zap.Uint("user_id", id))
		}

		switch {
		case status >= http.StatusInternalServerError:
			h.logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			h.logger.Info("request", fields...)
		default:
			h.logger.Debug("request", fields...)
		}
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		h.logger.Error("panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
