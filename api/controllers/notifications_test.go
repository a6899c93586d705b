package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

type testNotificationsService struct {
	lastParams    notifications.ListParams
	lastRecipient notifications.Recipient
	lastID        uuid.UUID
	updated       int64
}

func (s *testNotificationsService) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.lastParams = params
	return &notifications.ListResult{}, nil
}

func (s *testNotificationsService) MarkRead(_ context.Context, recipient notifications.Recipient, id uuid.UUID) error {
	s.lastRecipient, s.lastID = recipient, id
	return nil
}

func (s *testNotificationsService) MarkAllRead(_ context.Context, recipient notifications.Recipient) (int64, error) {
	s.lastRecipient = recipient
	return s.updated, nil
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func actorRequest(method, target string, userID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.WithActor(req.Context(), userID, role))
}

func TestListNotificationsUsesActorInbox(t *testing.T) {
	svc := &testNotificationsService{}
	vendorID := uuid.New()
	rec := httptest.NewRecorder()
	ListNotifications(svc, discardLogger())(rec, actorRequest(http.MethodGet, "/?limit=10&unreadOnly=true", vendorID, middleware.RoleVendor))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notifications.Vendor(vendorID), svc.lastParams.Recipient)
	assert.Equal(t, 10, svc.lastParams.Limit)
	assert.True(t, svc.lastParams.UnreadOnly)
}

func TestListNotificationsRejectsAdmin(t *testing.T) {
	rec := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, discardLogger())(rec, actorRequest(http.MethodGet, "/", uuid.New(), middleware.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &testNotificationsService{}
	customerID := uuid.New()
	notificationID := uuid.New()

	router := chi.NewRouter()
	router.Post("/notifications/{notificationId}/read", MarkNotificationRead(svc, discardLogger()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, actorRequest(http.MethodPost, "/notifications/"+notificationID.String()+"/read", customerID, middleware.RoleCustomer))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notificationID, svc.lastID)
	assert.Equal(t, enums.RecipientCustomer, svc.lastRecipient.Type)
	assert.Equal(t, customerID, svc.lastRecipient.ID)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc := &testNotificationsService{updated: 4}
	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, discardLogger())(rec, actorRequest(http.MethodPost, "/", uuid.New(), middleware.RoleDriver))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(4), body.Data["updated"])
	assert.Equal(t, enums.RecipientDriver, svc.lastRecipient.Type)
}
