package handler

import (
	"context"
	"errors"
	"net/http"
	"net/netip"

	"github.com/dtroode/sqrl-server/internal/backchannel"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

// MaxBodyBytes bounds a back-channel POST body.
const MaxBodyBytes = 2 * (backchannel.MaxClientLength + backchannel.MaxServerLength)

// BackchannelService runs one SQRL client command.
type BackchannelService interface {
	Handle(ctx context.Context, req model.BackchannelRequest) (model.BackchannelResponse, error)
}

// Backchannel handles SQRL client POSTs.
type Backchannel struct {
	service BackchannelService
	logger  *logger.Logger
}

// NewBackchannel creates a new Backchannel handler.
func NewBackchannel(service BackchannelService, logger *logger.Logger) *Backchannel {
	return &Backchannel{
		service: service,
		logger:  logger,
	}
}

// Handle reads the form, runs the command and writes the signed reply.
// The status is 500 when the server itself failed; the body is a reply either way.
func (h *Backchannel) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Backchannel handler: request body too large",
				"remote_addr", r.RemoteAddr)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("Backchannel handler: failed to parse form",
			"remote_addr", r.RemoteAddr,
			"error", err.Error())
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	req := model.BackchannelRequest{
		Form:     r.PostForm,
		QueryNut: r.URL.Query().Get("nut"),
		RemoteIP: RemoteIP(r),
	}

	resp, err := h.service.Handle(r.Context(), req)
	status := http.StatusOK
	if err != nil {
		h.logger.Error("Backchannel handler: command failed on server",
			"remote_addr", r.RemoteAddr,
			"error", err.Error())
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(resp.Body)); err != nil {
		h.logger.Debug("Backchannel handler: failed to write reply",
			"error", err.Error())
	}
}

// RemoteIP returns the transport peer address of r, with 4in6 addresses unmapped.
func RemoteIP(r *http.Request) netip.Addr {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.Unmap()
	}
	return netip.Addr{}
}
