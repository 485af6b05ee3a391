package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/mlavigne/notify-api/internal/middleware"
	authService "github.com/mlavigne/notify-api/internal/service/auth"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/httputil"
)

type Handler struct {
	service authService.Servicer
}

func NewHandler(service authService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	group := rg.Group("/auth")
	{
		group.POST("/login", h.Login)
		group.GET("/check", auth.Authenticate(), h.Check)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("username and password are required", err))
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"token": token})
}

func (h *Handler) Check(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"authenticated": true, "username": c.GetString("adminUsername")})
}
