package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-api/internal/api/shared"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/service"
	"github.com/taskflow/taskflow-api/internal/service/auth"
	"github.com/taskflow/taskflow-api/internal/service/recurring"
	"github.com/taskflow/taskflow-api/internal/service/reminder"
	"github.com/taskflow/taskflow-api/internal/store"
)

type mockRecurringService struct {
	ProcessFn func(ctx context.Context, now time.Time) (*recurring.Summary, error)
}

func (m *mockRecurringService) GenerateNextInstance(
	context.Context, *domain.Task, time.Time,
) (recurring.Result, error) {
	return recurring.Result{}, errors.New("not implemented")
}

func (m *mockRecurringService) ProcessRecurringTasks(ctx context.Context, now time.Time) (*recurring.Summary, error) {
	return m.ProcessFn(ctx, now)
}

type mockReminderService struct {
	ScanFn func(ctx context.Context, now time.Time) (*reminder.Summary, error)
}

func (m *mockReminderService) ScanAndNotify(ctx context.Context, now time.Time) (*reminder.Summary, error) {
	return m.ScanFn(ctx, now)
}

type mockNotificationStore struct {
	ListByUserFn func(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error)
	MarkReadFn   func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockNotificationStore) ReminderExists(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (m *mockNotificationStore) Create(context.Context, *domain.Notification) error {
	return nil
}

func (m *mockNotificationStore) ListByUser(
	ctx context.Context, userID uuid.UUID, unreadOnly bool,
) ([]*domain.Notification, error) {
	return m.ListByUserFn(ctx, userID, unreadOnly)
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return m.MarkReadFn(ctx, userID, id)
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(shared.WithPrincipal(r.Context(), userID, auth.RoleAuthenticated))
}

func TestJobHandler_RunRecurringTasks(t *testing.T) {
	clockNow := time.Date(2024, 3, 8, 0, 5, 0, 0, time.UTC)
	created := uuid.New()

	t.Run("returns summary with server clock", func(t *testing.T) {
		var gotNow time.Time
		h := NewJobHandler(&mockRecurringService{
			ProcessFn: func(_ context.Context, now time.Time) (*recurring.Summary, error) {
				gotNow = now
				return &recurring.Summary{
					ProcessedCount: 4,
					CreatedTasks:   []uuid.UUID{created},
					Skipped:        []recurring.Skip{},
					Errors:         []service.TaskError{{TaskID: uuid.New(), Kind: service.KindValidation, Message: "bad"}},
				}, nil
			},
		}, &mockReminderService{}, func() time.Time { return clockNow }, nil)

		rec := httptest.NewRecorder()
		h.RunRecurringTasks(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/recurring-tasks", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, clockNow.Equal(gotNow))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.EqualValues(t, 4, body["processed_count"])
		assert.Equal(t, []any{created.String()}, body["created_tasks"])
		assert.Equal(t, []any{}, body["skipped"])
		assert.Len(t, body["errors"], 1)
		assert.Equal(t, false, body["partial"])
	})

	t.Run("now override in body", func(t *testing.T) {
		var gotNow time.Time
		h := NewJobHandler(&mockRecurringService{
			ProcessFn: func(_ context.Context, now time.Time) (*recurring.Summary, error) {
				gotNow = now
				return &recurring.Summary{}, nil
			},
		}, &mockReminderService{}, func() time.Time { return clockNow }, nil)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"now":"2024-01-31T10:00:00+01:00"}`))
		rec := httptest.NewRecorder()
		h.RunRecurringTasks(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), gotNow)
	})

	t.Run("unknown body field is rejected", func(t *testing.T) {
		h := NewJobHandler(&mockRecurringService{}, &mockReminderService{}, nil, nil)

		rec := httptest.NewRecorder()
		h.RunRecurringTasks(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"when":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fatal query is 500", func(t *testing.T) {
		h := NewJobHandler(&mockRecurringService{
			ProcessFn: func(context.Context, time.Time) (*recurring.Summary, error) {
				return nil, service.NewFatalQueryError("recurring_service", "list_templates", errors.New("conn refused"))
			},
		}, &mockReminderService{}, nil, nil)

		rec := httptest.NewRecorder()
		h.RunRecurringTasks(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Job could not load its work items", resp.Error)
		assert.NotContains(t, rec.Body.String(), "conn refused")
	})
}

func TestJobHandler_RunReminders(t *testing.T) {
	taskID := uuid.New()
	h := NewJobHandler(&mockRecurringService{}, &mockReminderService{
		ScanFn: func(context.Context, time.Time) (*reminder.Summary, error) {
			return &reminder.Summary{
				Processed: 1,
				Notifications: []reminder.NotificationSummary{{
					TaskID:         taskID,
					NotificationID: uuid.New(),
					Message:        domain.ReminderMessage("Pay rent"),
				}},
				Skipped: []reminder.Skip{},
				Errors:  []service.TaskError{},
				Partial: true,
			}, nil
		},
	}, nil, nil)

	rec := httptest.NewRecorder()
	h.RunReminders(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/reminders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary reminder.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Notifications, 1)
	assert.Equal(t, taskID, summary.Notifications[0].TaskID)
	assert.Equal(t, `Reminder: Task "Pay rent" is due soon!`, summary.Notifications[0].Message)
	assert.True(t, summary.Partial)
}

func TestNotificationHandler_ListNotifications(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	tests := []struct {
		name       string
		query      string
		withUser   bool
		listErr    error
		wantStatus int
		wantUnread bool
	}{
		{name: "all notifications", withUser: true, wantStatus: http.StatusOK},
		{name: "unread only", query: "?unread=true", withUser: true, wantStatus: http.StatusOK, wantUnread: true},
		{name: "bad unread value", query: "?unread=maybe", withUser: true, wantStatus: http.StatusBadRequest},
		{name: "no user", wantStatus: http.StatusUnauthorized},
		{name: "store failure", withUser: true, listErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser uuid.UUID
			var gotUnread bool
			h := NewNotificationHandler(&mockNotificationStore{
				ListByUserFn: func(_ context.Context, uid uuid.UUID, unreadOnly bool) ([]*domain.Notification, error) {
					gotUser, gotUnread = uid, unreadOnly
					if tt.listErr != nil {
						return nil, tt.listErr
					}
					return []*domain.Notification{{
						ID:      uuid.New(),
						UserID:  uid,
						TaskID:  &taskID,
						Message: domain.ReminderMessage("Water plants"),
						Type:    domain.NotificationTypeReminder,
					}}, nil
				},
			}, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/notifications"+tt.query, nil)
			if tt.withUser {
				req = withUser(req, userID)
			}
			rec := httptest.NewRecorder()
			h.ListNotifications(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, userID, gotUser)
			assert.Equal(t, tt.wantUnread, gotUnread)

			var resp []NotificationResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp, 1)
			assert.Equal(t, "reminder", resp[0].Type)
			assert.Equal(t, &taskID, resp[0].TaskID)
		})
	}
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()

	tests := []struct {
		name       string
		param      string
		markErr    error
		wantStatus int
	}{
		{name: "marks read", param: notificationID.String(), wantStatus: http.StatusNoContent},
		{name: "invalid id", param: "not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "not found or not owned", param: notificationID.String(), markErr: store.ErrNotificationNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			h := NewNotificationHandler(&mockNotificationStore{
				MarkReadFn: func(_ context.Context, uid, id uuid.UUID) error {
					calls++
					assert.Equal(t, userID, uid)
					assert.Equal(t, notificationID, id)
					return tt.markErr
				},
			}, nil)

			router := chi.NewRouter()
			router.Post("/api/notifications/{id}/read", h.MarkRead)

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/"+tt.param+"/read", nil), userID)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.param == "not-a-uuid" {
				assert.Zero(t, calls)
			}
		})
	}
}
