package inventory

import (
	"sort"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

// Request asks for quantity units of an asset.
type Request struct {
	AssetID  string `json:"asset_id"`
	Quantity int    `json:"quantity"`
}

// Window is the inclusive period an order occupies its assets.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return domain.Validation("availability window requires a start and an end")
	}
	if w.End.Before(w.Start) {
		return domain.Validation("window end %s is before start %s", w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return nil
}

// Line is the availability of one requested asset.
type Line struct {
	AssetID           string     `json:"asset_id"`
	AssetName         string     `json:"asset_name"`
	Requested         int        `json:"requested"`
	Total             int        `json:"total_quantity"`
	Booked            int        `json:"booked"`
	SelfBooked        int        `json:"self_booked"`
	Available         int        `json:"available"`
	Deficit           int        `json:"deficit,omitempty"`
	NextAvailableDate *time.Time `json:"next_available_date,omitempty"`
	Reason            string     `json:"reason,omitempty"`
}

func (l Line) OK() bool {
	return l.Deficit == 0 && l.Reason == ""
}

type Report struct {
	Window Window `json:"window"`
	Lines  []Line `json:"lines"`
}

func (r Report) OK() bool {
	for _, l := range r.Lines {
		if !l.OK() {
			return false
		}
	}
	return true
}

// Shortfalls returns the lines that cannot be satisfied.
func (r Report) Shortfalls() []Line {
	var out []Line
	for _, l := range r.Lines {
		if !l.OK() {
			out = append(out, l)
		}
	}
	return out
}

// evaluate computes the free quantity of asset over the window given the
// bookings overlapping it and the outstanding self-bookings.
func evaluate(asset domain.Asset, requested int, bookings []domain.AssetBooking, self []domain.SelfBookingItem) Line {
	line := Line{
		AssetID:   asset.ID,
		AssetName: asset.Name,
		Requested: requested,
		Total:     asset.TotalQuantity,
	}
	if asset.Status == domain.AssetTransformed {
		line.Deficit = requested
		line.Reason = "asset has been transformed and can no longer be ordered"
		return line
	}

	for _, b := range bookings {
		line.Booked += b.Quantity
	}
	for _, s := range self {
		line.SelfBooked += s.Outstanding()
	}
	line.Available = max(asset.TotalQuantity-line.Booked-line.SelfBooked, 0)
	if requested <= line.Available {
		return line
	}

	line.Deficit = requested - line.Available
	line.NextAvailableDate = nextFreeDate(asset.TotalQuantity-line.SelfBooked, requested, bookings)
	return line
}

// nextFreeDate walks bookings by release date until enough quantity frees
// up. It returns nil when the request cannot be met even with no bookings,
// i.e. when self-bookings or the asset's size are the limit.
func nextFreeDate(capacity, requested int, bookings []domain.AssetBooking) *time.Time {
	if capacity < requested {
		return nil
	}
	sorted := make([]domain.AssetBooking, len(bookings))
	copy(sorted, bookings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BlockedUntil.Before(sorted[j].BlockedUntil)
	})

	held := 0
	for _, b := range sorted {
		held += b.Quantity
	}
	for _, b := range sorted {
		held -= b.Quantity
		if capacity-held >= requested {
			next := startOfDay(b.BlockedUntil).AddDate(0, 0, 1)
			return &next
		}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// merge sums requests for the same asset, keeping first-seen order.
func merge(reqs []Request) ([]Request, error) {
	if len(reqs) == 0 {
		return nil, domain.Validation("at least one asset is required")
	}
	idx := make(map[string]int, len(reqs))
	var out []Request
	for _, r := range reqs {
		if r.AssetID == "" {
			return nil, domain.Validation("asset id is required")
		}
		if r.Quantity <= 0 {
			return nil, domain.Validation("quantity for asset %s must be greater than zero", r.AssetID)
		}
		if i, ok := idx[r.AssetID]; ok {
			out[i].Quantity += r.Quantity
			continue
		}
		idx[r.AssetID] = len(out)
		out = append(out, r)
	}
	return out, nil
}
