package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlavigne/notify-api/internal/handler"
	"github.com/mlavigne/notify-api/internal/middleware"
	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/service/auth"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

const validToken = "valid-token"

type fakeAuthService struct{}

func (fakeAuthService) Login(ctx context.Context, username, password string) (string, error) {
	return validToken, nil
}

func (fakeAuthService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if token != validToken {
		return nil, apperrors.Unauthorized(nil)
	}
	return &auth.Claims{Username: "admin", Role: "admin"}, nil
}

type fakeNotificationService struct {
	created      *model.Notification
	notification *model.Notification
	createErr    error
}

func (s *fakeNotificationService) Create(ctx context.Context, req *model.CreateNotificationRequest, mediaPaths []string) (*model.Notification, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}

	now := time.Now()
	n := &model.Notification{
		ID:            uuid.New(),
		Title:         req.Title,
		Message:       req.Message,
		MediaPaths:    mediaPaths,
		IsInteractive: req.IsInteractive,
		SentAt:        &now,
	}
	s.created = n
	return n, nil
}

func (s *fakeNotificationService) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	if s.notification != nil && s.notification.ID == id {
		return s.notification, nil
	}
	return nil, apperrors.NotFound("notification", nil)
}

func (s *fakeNotificationService) List(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	if s.notification != nil {
		return []*model.Notification{s.notification}, nil
	}
	return []*model.Notification{}, nil
}

func (s *fakeNotificationService) ListPhotos(ctx context.Context, group *model.Group) ([]*model.PhotoEntry, error) {
	return []*model.PhotoEntry{}, nil
}

func (s *fakeNotificationService) ListPhotosForUser(ctx context.Context, userID uuid.UUID) ([]*model.PhotoEntry, error) {
	return []*model.PhotoEntry{}, nil
}

type fakeResponseService struct {
	notification *model.Notification
}

func (s *fakeResponseService) Respond(ctx context.Context, notificationID, userID uuid.UUID, value model.ResponseValue) (*model.Notification, error) {
	if !value.Valid() {
		return nil, apperrors.Validation("response must be available or unavailable", nil)
	}
	if s.notification == nil || s.notification.ID != notificationID {
		return nil, apperrors.NotFound("notification", nil)
	}
	return s.notification, nil
}

func (s *fakeResponseService) ListInterested(ctx context.Context, notificationID uuid.UUID) ([]*model.User, error) {
	return []*model.User{}, nil
}

type fakeStore struct {
	removed []string
}

func (s *fakeStore) SaveNotificationMedia(fh *multipart.FileHeader) (string, error) {
	return "/uploads/notification-images/" + fh.Filename, nil
}

func (s *fakeStore) SaveProfilePicture(fh *multipart.FileHeader) (string, error) {
	return "/uploads/profile-pictures/" + fh.Filename, nil
}

func (s *fakeStore) Remove(relPath string) error {
	s.removed = append(s.removed, relPath)
	return nil
}

func setupRouter(svc *fakeNotificationService, responses *fakeResponseService) (*gin.Engine, *fakeStore) {
	gin.SetMode(gin.TestMode)
	handler.RegisterValidations()

	store := &fakeStore{}
	engine := gin.New()
	h := NewHandler(svc, responses, store)
	h.RegisterRoutes(engine.Group("/api/v1"), middleware.NewAuthMiddleware(fakeAuthService{}))
	return engine, store
}

func notificationForm(t *testing.T, fields map[string]string, files []string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	for _, name := range files {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake media"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestCreateRequiresAuth(t *testing.T) {
	engine, _ := setupRouter(&fakeNotificationService{}, &fakeResponseService{})

	body, contentType := notificationForm(t, map[string]string{
		"title": "t", "message": "m", "targetGroups": "Familles",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/notifications/send", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateWithMedia(t *testing.T) {
	svc := &fakeNotificationService{}
	engine, _ := setupRouter(svc, &fakeResponseService{})

	body, contentType := notificationForm(t, map[string]string{
		"title":        "Kermesse",
		"message":      "Samedi à 14h",
		"targetGroups": "Familles,Enfance",
	}, []string{"affiche.jpg"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/send", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+validToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, []string{"/uploads/notification-images/affiche.jpg"}, []string(svc.created.MediaPaths))
}

func TestCreateRejectionDiscardsUploads(t *testing.T) {
	svc := &fakeNotificationService{
		createErr: apperrors.Validation("invalid target groups", nil),
	}
	engine, store := setupRouter(svc, &fakeResponseService{})

	body, contentType := notificationForm(t, map[string]string{
		"title":        "Kermesse",
		"message":      "Samedi à 14h",
		"targetGroups": "Anciens",
	}, []string{"affiche.jpg"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/send", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+validToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"/uploads/notification-images/affiche.jpg"}, store.removed)
}

func TestCreateMissingFields(t *testing.T) {
	engine, _ := setupRouter(&fakeNotificationService{}, &fakeResponseService{})

	body, contentType := notificationForm(t, map[string]string{"title": "t"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/send", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+validToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespond(t *testing.T) {
	n := &model.Notification{ID: uuid.New(), Title: "Sortie", IsInteractive: true}
	engine, _ := setupRouter(&fakeNotificationService{notification: n}, &fakeResponseService{notification: n})

	payload := fmt.Sprintf(`{"userId":%q,"response":"available"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/respond", n.ID), strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestRespondUnknownNotification(t *testing.T) {
	engine, _ := setupRouter(&fakeNotificationService{}, &fakeResponseService{})

	payload := fmt.Sprintf(`{"userId":%q,"response":"available"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/respond", uuid.New()), strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondMalformedBody(t *testing.T) {
	engine, _ := setupRouter(&fakeNotificationService{}, &fakeResponseService{})

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/respond", uuid.New()), strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryByGroupRejectsUnknownLabel(t *testing.T) {
	engine, _ := setupRouter(&fakeNotificationService{}, &fakeResponseService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/group/Anciens/history", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryWithGroupFilter(t *testing.T) {
	n := &model.Notification{ID: uuid.New(), Title: "Repas", TargetGroups: model.Groups{model.GroupFamilles}}
	engine, _ := setupRouter(&fakeNotificationService{notification: n}, &fakeResponseService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/history?group=Familles", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notifications/history?group=bad", nil)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
