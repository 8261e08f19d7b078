package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dtroode/sqrl-server/internal/logger"
)

// CPSService exchanges a client provided session token for a login token.
type CPSService interface {
	CompleteCPS(ctx context.Context, cpsToken string) (string, error)
}

// CPS completes a client provided session by redirecting the browser.
type CPS struct {
	service    CPSService
	successURL string
	logger     *logger.Logger
}

// NewCPS creates a new CPS handler redirecting to successURL.
func NewCPS(service CPSService, successURL string, logger *logger.Logger) *CPS {
	return &CPS{
		service:    service,
		successURL: successURL,
		logger:     logger,
	}
}

// Handle verifies ?token= and redirects with the login token attached.
func (h *CPS) Handle(w http.ResponseWriter, r *http.Request) {
	cpsToken := r.URL.Query().Get("token")
	if cpsToken == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	loginToken, err := h.service.CompleteCPS(r.Context(), cpsToken)
	if err != nil {
		h.logger.Warn("CPS handler: rejected token",
			"remote_addr", r.RemoteAddr,
			"error", err.Error())
		http.Error(w, "invalid or expired token", http.StatusForbidden)
		return
	}

	target, err := url.Parse(h.successURL)
	if err != nil {
		h.logger.Error("CPS handler: invalid success url",
			"url", h.successURL,
			"error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	q.Set("token", loginToken)
	target.RawQuery = q.Encode()

	h.logger.Info("CPS handler: login completed")
	http.Redirect(w, r, target.String(), http.StatusFound)
}
