package lineitems

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/httpx"
)

type Handler struct {
	ledger *Ledger
	logger *slog.Logger
}

func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		logger: logger,
	}
}

// Register mounts the ledger routes. Every route is staff only.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{id}/line-items", h.HandleList)
	mux.HandleFunc("POST /orders/{id}/line-items/catalog", h.HandleAddCatalog)
	mux.HandleFunc("POST /orders/{id}/line-items/custom", h.HandleAddCustom)
	mux.HandleFunc("PATCH /line-items/{id}", h.HandleUpdate)
	mux.HandleFunc("POST /line-items/{id}/void", h.HandleVoid)
}

type listResponse struct {
	Items  []domain.LineItem `json:"items"`
	Totals Totals            `json:"totals"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	items, err := h.ledger.List(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, listResponse{Items: items, Totals: Summarize(items)})
}

func (h *Handler) HandleAddCatalog(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req CatalogInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	req.OrderID = r.PathValue("id")

	item, err := h.ledger.AddCatalog(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, item)
}

func (h *Handler) HandleAddCustom(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req CustomInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	req.OrderID = r.PathValue("id")

	item, err := h.ledger.AddCustom(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, item)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req UpdateInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	item, err := h.ledger.Update(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, item)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleVoid(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := httpx.RequireStaff(actor); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	var req voidRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	item, err := h.ledger.Void(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, item)
}
