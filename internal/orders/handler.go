package orders

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/httpx"
	"github.com/joao-fontenele/assetflow/internal/pricing"
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
	mux.HandleFunc("POST /orders", h.HandleSubmit)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("GET /orders/{id}/history", h.HandleHistory)
	mux.HandleFunc("POST /orders/{id}/status", h.HandleTransition)
	mux.HandleFunc("POST /orders/{id}/financial-status", h.HandleFinancialStatus)
	mux.HandleFunc("POST /orders/{id}/reprice", h.HandleReprice)
	mux.HandleFunc("POST /orders/{id}/vehicle", h.HandleChangeVehicle)
	mux.HandleFunc("POST /orders/{id}/cancel", h.HandleCancel)
}

type submitRequest struct {
	CompanyID      string             `json:"company_id"`
	BrandID        *string            `json:"brand_id"`
	Contact        domain.Contact     `json:"contact"`
	EventStartDate string             `json:"event_start_date"`
	EventEndDate   string             `json:"event_end_date"`
	Venue          domain.Venue       `json:"venue"`
	TripType       domain.TripType    `json:"trip_type"`
	DeliveryWindow *domain.TimeWindow `json:"delivery_window"`
	PickupWindow   *domain.TimeWindow `json:"pickup_window"`
	Items          []ItemInput        `json:"items"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req submitRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	start, err := httpx.ParseDate("event_start_date", req.EventStartDate)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	end, err := httpx.ParseDate("event_end_date", req.EventEndDate)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	order, err := h.svc.Submit(r.Context(), actor, SubmitInput{
		CompanyID:      req.CompanyID,
		BrandID:        req.BrandID,
		Contact:        req.Contact,
		EventStart:     start,
		EventEnd:       end,
		Venue:          req.Venue,
		TripType:       req.TripType,
		DeliveryWindow: req.DeliveryWindow,
		PickupWindow:   req.PickupWindow,
		Items:          req.Items,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	order, err := h.svc.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	history, err := h.svc.History(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, history)
}

type transitionRequest struct {
	Status domain.OrderStatus `json:"status"`
	Notes  string             `json:"notes"`
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req transitionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	order, err := h.svc.Transition(r.Context(), actor, r.PathValue("id"), req.Status, req.Notes)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

type financialRequest struct {
	Status domain.FinancialStatus `json:"status"`
	Notes  string                 `json:"notes"`
}

func (h *Handler) HandleFinancialStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req financialRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	order, err := h.svc.UpdateFinancialStatus(r.Context(), actor, r.PathValue("id"), req.Status, req.Notes)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

type repriceRequest struct {
	MarginPercent *decimal.Decimal `json:"margin_percent"`
	MarginReason  string           `json:"margin_reason"`
}

func (h *Handler) HandleReprice(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req repriceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var override *pricing.MarginOverride
	if req.MarginPercent != nil {
		override = &pricing.MarginOverride{Percent: *req.MarginPercent, Reason: req.MarginReason}
	}

	order, err := h.svc.Reprice(r.Context(), actor, r.PathValue("id"), override)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

type vehicleRequest struct {
	VehicleType domain.VehicleType `json:"vehicle_type"`
	Reason      string             `json:"reason"`
}

func (h *Handler) HandleChangeVehicle(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req vehicleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	order, err := h.svc.ChangeVehicle(r.Context(), actor, r.PathValue("id"), req.VehicleType, req.Reason)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

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

	httpx.WriteJSON(w, h.logger, http.StatusOK, res)
}
