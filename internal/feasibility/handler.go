package feasibility

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/assetflow/internal/httpx"
)

type Handler struct {
	checker *Checker
	logger  *slog.Logger
}

func NewHandler(checker *Checker, logger *slog.Logger) *Handler {
	return &Handler{
		checker: checker,
		logger:  logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /feasibility", h.HandleCheck)
}

type checkRequest struct {
	EventStartDate string  `json:"event_start_date"`
	Items          []Entry `json:"items"`
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
	start, err := httpx.ParseDate("event_start_date", req.EventStartDate)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	res, err := h.checker.Check(r.Context(), actor.PlatformID, req.Items, start)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, res)
}
