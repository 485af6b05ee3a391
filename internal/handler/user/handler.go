package user

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/middleware"
	"github.com/mlavigne/notify-api/internal/model"
	userService "github.com/mlavigne/notify-api/internal/service/user"
	"github.com/mlavigne/notify-api/internal/storage"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/httputil"
)

type Handler struct {
	service userService.Servicer
	store   storage.Store
}

func NewHandler(service userService.Servicer, store storage.Store) *Handler {
	return &Handler{
		service: service,
		store:   store,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	users := rg.Group("/users")
	{
		users.POST("", h.Create)
		users.GET("/:id", h.Get)
		users.PUT("/:id", h.Update)
		users.POST("/:id/profile-picture", h.UploadProfilePicture)
		users.PUT("/:id/device", h.ClearDevice)
		users.GET("/device/:deviceId", h.CheckDevice)
		users.GET("/group/:group", auth.Authenticate(), h.ListByGroup)
		users.DELETE("/:id", auth.Authenticate(), h.Delete)
	}
}

type groupURI struct {
	Group string `uri:"group" binding:"required,grouplabel"`
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("missing required fields", err))
		return
	}

	user, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, user)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid update payload", err))
		return
	}

	user, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) UploadProfilePicture(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	fh, err := c.FormFile("profilePicture")
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("no file uploaded", err))
		return
	}

	path, err := h.store.SaveProfilePicture(fh)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	user, err := h.service.SetProfilePicture(c.Request.Context(), id, path)
	if err != nil {
		_ = h.store.Remove(path)
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

// CheckDevice re-identifies a member from a device binding. The response is
// 200 either way; absence is data, not an error.
func (h *Handler) CheckDevice(c *gin.Context) {
	user, err := h.service.GetByDeviceID(c.Request.Context(), c.Param("deviceId"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			httputil.RespondWithSuccess(c, gin.H{"exists": false})
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"exists": true, "user": user})
}

func (h *Handler) ClearDevice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	user, err := h.service.ClearDeviceID(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ListByGroup(c *gin.Context) {
	var uri groupURI
	if err := c.ShouldBindUri(&uri); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid group name", err))
		return
	}

	users, err := h.service.ListByGroup(c.Request.Context(), model.Group(uri.Group))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"deleted": true})
}
