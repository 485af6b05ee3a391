package notification

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/middleware"
	"github.com/mlavigne/notify-api/internal/model"
	notificationService "github.com/mlavigne/notify-api/internal/service/notification"
	responseService "github.com/mlavigne/notify-api/internal/service/response"
	"github.com/mlavigne/notify-api/internal/storage"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/httputil"
)

type Handler struct {
	service   notificationService.Servicer
	responses responseService.Servicer
	store     storage.Store
}

func NewHandler(service notificationService.Servicer, responses responseService.Servicer, store storage.Store) *Handler {
	return &Handler{
		service:   service,
		responses: responses,
		store:     store,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	notifications := rg.Group("/notifications")
	{
		notifications.POST("/send", auth.Authenticate(), h.Create)
		notifications.POST("/:id/respond", h.Respond)
		notifications.GET("/history", h.History)
		notifications.GET("/group/:group/history", h.HistoryByGroup)
		notifications.GET("/:id/interested", h.Interested)
		notifications.GET("/photos", h.Photos)
		notifications.GET("/group/:group/photos", h.PhotosByGroup)
		notifications.GET("/user/:userId/photos", h.PhotosForUser)
	}
}

type groupURI struct {
	Group string `uri:"group" binding:"required,grouplabel"`
}

type idURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// Create accepts the admin compose form: text fields plus zero or more
// attached media files under the images key.
func (h *Handler) Create(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("missing required fields", err))
		return
	}

	var mediaPaths []string
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["images"] {
			path, err := h.store.SaveNotificationMedia(fh)
			if err != nil {
				httputil.RespondWithError(c, err)
				return
			}
			mediaPaths = append(mediaPaths, path)
		}
	}

	notification, err := h.service.Create(c.Request.Context(), &req, mediaPaths)
	if err != nil {
		// A rejected create keeps none of its uploads.
		for _, path := range mediaPaths {
			_ = h.store.Remove(path)
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, notification)
}

func (h *Handler) Respond(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification ID", err))
		return
	}

	var req model.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("userId and response are required", err))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	notification, err := h.responses.Respond(c.Request.Context(), notificationID, userID, model.ResponseValue(req.Response))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, notification)
}

func (h *Handler) History(c *gin.Context) {
	group, err := optionalGroupQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	notifications, err := h.service.List(c.Request.Context(), group)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) HistoryByGroup(c *gin.Context) {
	var uri groupURI
	if err := c.ShouldBindUri(&uri); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid group name", err))
		return
	}

	group := model.Group(uri.Group)
	notifications, err := h.service.List(c.Request.Context(), &group)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) Interested(c *gin.Context) {
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification ID", err))
		return
	}

	users, err := h.responses.ListInterested(c.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) Photos(c *gin.Context) {
	group, err := optionalGroupQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	photos, err := h.service.ListPhotos(c.Request.Context(), group)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, photos)
}

func (h *Handler) PhotosByGroup(c *gin.Context) {
	var uri groupURI
	if err := c.ShouldBindUri(&uri); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid group name", err))
		return
	}

	group := model.Group(uri.Group)
	photos, err := h.service.ListPhotos(c.Request.Context(), &group)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, photos)
}

func (h *Handler) PhotosForUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID", err))
		return
	}

	photos, err := h.service.ListPhotosForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, photos)
}

func optionalGroupQuery(c *gin.Context) (*model.Group, error) {
	raw := c.Query("group")
	if raw == "" {
		return nil, nil
	}

	group, ok := model.ParseGroup(raw)
	if !ok {
		return nil, apperrors.Validation("invalid group name", nil)
	}
	return &group, nil
}
