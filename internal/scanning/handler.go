package scanning

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders/{id}/scans/inbound", h.HandleInbound)
	mux.HandleFunc("POST /orders/{id}/scans/outbound", h.HandleOutbound)
	mux.HandleFunc("GET /orders/{id}/scans", h.HandleList)
	mux.HandleFunc("GET /orders/{id}/scans/progress", h.HandleProgress)
}

func (h *Handler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	h.handleScan(w, r, h.svc.Inbound)
}

func (h *Handler) HandleOutbound(w http.ResponseWriter, r *http.Request) {
	h.handleScan(w, r, h.svc.Outbound)
}

type scanFunc func(ctx context.Context, actor domain.Actor, orderID string, in ScanInput) (Result, error)

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request, scan scanFunc) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req ScanInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	res, err := scan(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, res)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	events, err := h.svc.ListEvents(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, events)
}

// HandleProgress reports inbound progress unless ?type=OUTBOUND is given.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	scanType := domain.ScanInbound
	if t := r.URL.Query().Get("type"); t != "" {
		scanType = domain.ScanType(t)
	}

	progress, err := h.svc.Progress(r.Context(), actor, r.PathValue("id"), scanType)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, progress)
}
