package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/motorline/dealerdesk/domains/hierarchy/be/service"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

type mockService struct {
	reassignFn      func(ctx context.Context, actor principal.Principal, input service.ReassignInput) error
	directReportsFn func(ctx context.Context, actor principal.Principal, managerID uuid.UUID) ([]service.Member, error)
}

func (m *mockService) Reassign(ctx context.Context, actor principal.Principal, input service.ReassignInput) error {
	if m.reassignFn == nil {
		panic("reassignFn not configured")
	}
	return m.reassignFn(ctx, actor, input)
}

func (m *mockService) DirectReports(ctx context.Context, actor principal.Principal, managerID uuid.UUID) ([]service.Member, error) {
	if m.directReportsFn == nil {
		panic("directReportsFn not configured")
	}
	return m.directReportsFn(ctx, actor, managerID)
}

func requestWithPrincipal(t *testing.T, method, target, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := principal.WithPrincipal(req.Context(), principal.Principal{
		UserID:    uuid.New(),
		CompanyID: 42,
		Role:      rbac.RoleSeniorManager,
	})
	return req.WithContext(ctx)
}

func TestReassignSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	managerID := uuid.New()
	reportID := uuid.New()

	svc := &mockService{
		reassignFn: func(ctx context.Context, actor principal.Principal, input service.ReassignInput) error {
			require.Equal(t, int64(42), actor.CompanyID)
			require.Equal(t, userID, input.UserID)
			require.NotNil(t, input.ReportsTo)
			require.Equal(t, managerID, *input.ReportsTo)
			require.Equal(t, []uuid.UUID{reportID}, input.Manages)
			return nil
		},
	}

	h := New(svc, zaptest.NewLogger(t))

	body, err := json.Marshal(map[string]any{
		"userId":    userID,
		"reportsTo": managerID,
		"manages":   []uuid.UUID{reportID},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodPost, "/reassign", string(body)))

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReassignWithoutPrincipal(t *testing.T) {
	t.Parallel()

	h := New(&mockService{}, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/reassign", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestReassignInvalidBody(t *testing.T) {
	t.Parallel()

	h := New(&mockService{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodPost, "/reassign", "{not json"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReassignErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"validation", &service.ValidationError{Fields: service.FieldErrors{"reportsTo": {"bad"}}}, http.StatusBadRequest},
		{"infrastructure", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockService{
				reassignFn: func(ctx context.Context, actor principal.Principal, input service.ReassignInput) error {
					return tc.err
				},
			}
			h := New(svc, zaptest.NewLogger(t))

			body := `{"userId":"` + uuid.NewString() + `"}`
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodPost, "/reassign", body))

			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestReassignValidationErrorCarriesFieldErrors(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		reassignFn: func(ctx context.Context, actor principal.Principal, input service.ReassignInput) error {
			return &service.ValidationError{Fields: service.FieldErrors{
				"reportsTo": {"a user cannot report to themselves"},
			}}
		},
	}
	h := New(svc, zaptest.NewLogger(t))

	body := `{"userId":"` + uuid.NewString() + `"}`
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodPost, "/reassign", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Contains(t, doc, "errors")
}

func TestDirectReportsSuccess(t *testing.T) {
	t.Parallel()

	managerID := uuid.New()
	reportID := uuid.New()

	svc := &mockService{
		directReportsFn: func(ctx context.Context, actor principal.Principal, id uuid.UUID) ([]service.Member, error) {
			require.Equal(t, managerID, id)
			return []service.Member{{
				ID:        reportID,
				FirstName: "Ravi",
				LastName:  "Kumar",
				Role:      "senior-executive",
				ReportsTo: &managerID,
			}}, nil
		},
	}
	h := New(svc, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodGet, "/"+managerID.String()+"/reports", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Items []memberResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Items, 1)
	require.Equal(t, reportID, doc.Items[0].ID)
}

func TestDirectReportsInvalidID(t *testing.T) {
	t.Parallel()

	h := New(&mockService{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, requestWithPrincipal(t, http.MethodGet, "/not-a-uuid/reports", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
