package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sqrl-server/internal/mocks"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/testutil"
)

func TestCPS_Handle(t *testing.T) {
	t.Parallel()

	svc := mocks.NewCPSService(t)
	svc.On("CompleteCPS", mock.Anything, "cps-token").Return("login-token", nil)

	h := NewCPS(svc, "https://example.com/welcome?from=sqrl", testutil.MakeNoopLogger())
	w := httptest.NewRecorder()
	h.Handle(w, httptest.NewRequest(http.MethodGet, "/sqrl/cps?token=cps-token", nil))

	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "example.com", location.Host)
	assert.Equal(t, "/welcome", location.Path)
	assert.Equal(t, "login-token", location.Query().Get("token"))
	assert.Equal(t, "sqrl", location.Query().Get("from"))
}

func TestCPS_Handle_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		setup      func(svc *mocks.CPSService)
		wantStatus int
	}{
		{
			name:       "missing token",
			target:     "/sqrl/cps",
			setup:      func(svc *mocks.CPSService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "expired token",
			target: "/sqrl/cps?token=old",
			setup: func(svc *mocks.CPSService) {
				svc.On("CompleteCPS", mock.Anything, "old").Return("", model.ErrTokenExpired)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:   "not authenticated",
			target: "/sqrl/cps?token=early",
			setup: func(svc *mocks.CPSService) {
				svc.On("CompleteCPS", mock.Anything, "early").Return("", model.ErrLoginNotAuthenticated)
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewCPSService(t)
			tt.setup(svc)

			h := NewCPS(svc, "/", testutil.MakeNoopLogger())
			w := httptest.NewRecorder()
			h.Handle(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
		})
	}
}
