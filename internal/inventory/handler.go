package inventory

import (
	"log/slog"
	"net/http"

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
	mux.HandleFunc("POST /assets", h.HandleCreateAsset)
	mux.HandleFunc("GET /assets/{id}", h.HandleGetAsset)
	mux.HandleFunc("POST /availability", h.HandleCheck)
	mux.HandleFunc("POST /self-bookings", h.HandleCreateSelfBooking)
	mux.HandleFunc("POST /self-bookings/{id}/return", h.HandleReturnSelfBooking)
}

func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req NewAsset
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	assets, err := h.svc.CreateAsset(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, assets)
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	asset, err := h.svc.GetAsset(r.Context(), actor.PlatformID, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, asset)
}

type checkRequest struct {
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Items     []Request `json:"items"`
}

func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req checkRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	start, err := httpx.ParseDate("start_date", req.StartDate)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	end, err := httpx.ParseDate("end_date", req.EndDate)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	report, err := h.svc.Check(r.Context(), actor.PlatformID, Window{Start: start, End: end}, req.Items)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, report)
}

type selfBookingRequest struct {
	AssetID  string `json:"asset_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

func (h *Handler) HandleCreateSelfBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req selfBookingRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	item, err := h.svc.CreateSelfBooking(r.Context(), actor, req.AssetID, req.Quantity, req.Reason)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, item)
}

type returnRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleReturnSelfBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req returnRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	item, err := h.svc.ReturnSelfBooking(r.Context(), actor, r.PathValue("id"), req.Quantity)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, item)
}
