package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yyup/kadmin/internal/auth"
	"github.com/yyup/kadmin/internal/utils"
)

// Handler serves the subset of the product API the login probe talks to.
type Handler struct {
	authService *auth.Service
	logger      *zap.SugaredLogger
}

func NewHandler(authService *auth.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = utils.Logger().Sugar()
	}
	return &Handler{authService: authService, logger: logger}
}

// NewRouter builds an engine with recovery, request logging, /health and the
// auth routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(h.logger), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	authGroup := router.Group("/api/auth")
	authGroup.POST("/login", h.handleLogin)
	authGroup.GET("/verify", h.handleVerify)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "username and password are required", auth.ErrInvalidCredentials)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(c, http.StatusUnauthorized, "invalid credentials", nil)
		default:
			h.logger.Errorw("login failed", "username", req.Username, "error", err)
			writeError(c, http.StatusInternalServerError, "failed to login", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    newAuthData(result),
	})
}

func (h *Handler) handleVerify(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeError(c, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}

	claims, err := h.authService.VerifyToken(strings.TrimSpace(token))
	if err != nil {
		writeError(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":       claims.Subject,
			"username": claims.Username,
			"role":     claims.Role,
		},
	})
}

func newAuthData(result *auth.AuthResult) gin.H {
	return gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
		"user": gin.H{
			"id":          result.User.ID,
			"username":    result.User.Username,
			"role":        result.User.Role,
			"createdAt":   result.User.CreatedAt.Format(time.RFC3339),
			"lastLoginAt": result.User.LastLoginAt.Format(time.RFC3339),
		},
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	body := gin.H{
		"success": false,
		"error":   message,
	}
	if err != nil && status != http.StatusUnauthorized {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
