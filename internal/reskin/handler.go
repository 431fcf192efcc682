package reskin

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/httpx"
	"github.com/joao-fontenele/assetflow/internal/orders"
)

type Handler struct {
	svc    *Service
	orders *orders.Service
	logger *slog.Logger
}

func NewHandler(svc *Service, ordersSvc *orders.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		orders: ordersSvc,
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{id}/reskins", h.HandleList)
	mux.HandleFunc("POST /reskins", h.HandleProcess)
	mux.HandleFunc("POST /reskins/{id}/complete", h.HandleComplete)
	mux.HandleFunc("POST /reskins/{id}/cancel", h.HandleCancel)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	reskins, err := h.svc.ListForOrder(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, reskins)
}

func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req ProcessInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	created, err := h.svc.Process(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, created)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req CompleteInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	res, err := h.svc.Complete(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, res)
}

type cancelResponse struct {
	CancelResult
	Order      *orders.CancelResult `json:"order_cancellation,omitempty"`
	OrderError *httpx.ErrorBody     `json:"order_cancellation_error,omitempty"`
}

// HandleCancel cancels the reskin and, when the caller asked for it, the
// whole order as a fabrication failure. The two run in separate
// transactions: a refused order cancellation is reported next to the
// committed reskin cancellation, which keeps the response a 200.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req CancelInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	res, err := h.svc.Cancel(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	resp := cancelResponse{CancelResult: res}
	if res.CancelOrder {
		cancelled, err := h.orders.Cancel(r.Context(), actor, res.Reskin.OrderID, orders.CancelInput{
			Reason: domain.CancelFabricationFailed,
			Notes:  req.Reason,
		})
		if err != nil {
			h.logger.Warn("reskin cancelled but order cancellation failed",
				"error", err,
				"reskin_id", res.Reskin.ID,
				"order_id", res.Reskin.OrderID,
			)
			_, body := httpx.Describe(h.logger, err)
			resp.OrderError = &body
		} else {
			resp.Order = &cancelled
		}
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, resp)
}
