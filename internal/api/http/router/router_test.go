package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/mocks"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/ratelimiter"
	"github.com/dtroode/sqrl-server/internal/testutil"
)

var testPaths = Paths{
	Backchannel:     "/sqrl",
	CPS:             "/sqrl/cps",
	LoginSuccessURL: "/home",
}

func TestRouter_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	bc := mocks.NewBackchannelService(t)
	cps := mocks.NewCPSService(t)
	bc.On("Handle", mock.Anything, mock.Anything).Return(model.BackchannelResponse{Body: "cmVwbHk"}, nil).Once()
	cps.On("CompleteCPS", mock.Anything, "tok").Return("login", nil).Once()

	h := New(bc, cps, testPaths, ratelimiter.New(100, 100, time.Minute), m, reg, testutil.MakeNoopLogger()).Register()

	t.Run("backchannel", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/sqrl?nut=n", strings.NewReader("client=x"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cmVwbHk", w.Body.String())
	})

	t.Run("backchannel rejects get", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sqrl", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("cps", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sqrl/cps?token=tok", nil))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/home?token=login", w.Header().Get("Location"))
	})

	t.Run("metrics", func(t *testing.T) {
		m.NutIssued()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "sqrl_nuts_issued_total 1")
	})

	t.Run("unknown path", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_WithoutMetrics(t *testing.T) {
	h := New(mocks.NewBackchannelService(t), mocks.NewCPSService(t), testPaths, nil, nil, nil, testutil.MakeNoopLogger()).Register()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
