// Package feasibility decides whether assets needing refurbishment can be
// ready before an event starts.
package feasibility

import (
	"context"
	"fmt"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

type Mode string

const (
	ModeMandatoryRed   Mode = "MANDATORY_RED"
	ModeOptionalOrange Mode = "OPTIONAL_ORANGE"
)

// Entry is one requested asset and the caller's maintenance decision.
type Entry struct {
	AssetID  string                      `json:"asset_id"`
	Decision *domain.MaintenanceDecision `json:"maintenance_decision,omitempty"`
}

type Issue struct {
	AssetID              string           `json:"asset_id"`
	AssetName            string           `json:"asset_name"`
	Condition            domain.Condition `json:"condition"`
	RefurbDays           int              `json:"refurb_days"`
	EarliestFeasibleDate string           `json:"earliest_feasible_date"`
	MaintenanceMode      Mode             `json:"maintenance_mode"`
	Message              string           `json:"message"`
}

type Result struct {
	Feasible bool    `json:"feasible"`
	Issues   []Issue `json:"issues"`
}

// SettingsSource supplies the lead time, weekend and timezone rules of a
// platform.
type SettingsSource interface {
	Settings(ctx context.Context, platformID string) (domain.PlatformSettings, error)
}

type Checker struct {
	assets   storage.AssetStore
	settings SettingsSource
	now      func() time.Time
}

func NewChecker(assets storage.AssetStore, settings SettingsSource, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{assets: assets, settings: settings, now: now}
}

// Check loads the assets behind entries and evaluates them against the
// platform's settings.
func (c *Checker) Check(ctx context.Context, platformID string, entries []Entry, eventStart time.Time) (Result, error) {
	ps, err := c.settings.Settings(ctx, platformID)
	if err != nil {
		return Result{}, err
	}
	cal, err := NewCalendar(ps)
	if err != nil {
		return Result{}, err
	}

	var targets []target
	for _, e := range dedupe(entries) {
		asset, err := c.assets.GetAsset(ctx, e.AssetID)
		if err != nil {
			return Result{}, fmt.Errorf("get asset: %w", err)
		}
		if asset == nil || asset.PlatformID != platformID {
			return Result{}, domain.NotFound("asset %s not found", e.AssetID)
		}
		targets = append(targets, target{asset: *asset, decision: e.Decision})
	}

	return evaluate(cal, c.now(), eventStart, targets), nil
}

type target struct {
	asset    domain.Asset
	decision *domain.MaintenanceDecision
}

func evaluate(cal Calendar, now, eventStart time.Time, targets []target) Result {
	res := Result{Feasible: true, Issues: []Issue{}}
	event := cal.Date(eventStart)

	for _, t := range targets {
		mode, ok := modeFor(t.asset.Condition, t.decision)
		if !ok {
			continue
		}
		days := 0
		if t.asset.RefurbDaysEstimate != nil {
			days = *t.asset.RefurbDaysEstimate
		}
		ready := cal.ReadyDate(now, days)
		if !event.Before(ready) {
			continue
		}

		res.Feasible = false
		res.Issues = append(res.Issues, Issue{
			AssetID:              t.asset.ID,
			AssetName:            t.asset.Name,
			Condition:            t.asset.Condition,
			RefurbDays:           days,
			EarliestFeasibleDate: ready.Format(time.DateOnly),
			MaintenanceMode:      mode,
			Message: fmt.Sprintf("%s needs %d business day(s) of refurbishment, earliest feasible event date is %s",
				t.asset.Name, days, ready.Format(time.DateOnly)),
		})
	}
	return res
}

// modeFor reports whether an asset is subject to the lead time check. RED
// always is; ORANGE only when the caller chose to fix it in this order.
func modeFor(c domain.Condition, decision *domain.MaintenanceDecision) (Mode, bool) {
	switch c {
	case domain.ConditionRed:
		return ModeMandatoryRed, true
	case domain.ConditionOrange:
		if decision != nil && *decision == domain.MaintenanceFixInOrder {
			return ModeOptionalOrange, true
		}
	}
	return "", false
}

// dedupe collapses entries per asset, keeping first-seen order. A
// FIX_IN_ORDER decision wins over any other.
func dedupe(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		i := slices.IndexFunc(out, func(x Entry) bool { return x.AssetID == e.AssetID })
		if i < 0 {
			out = append(out, e)
			continue
		}
		if e.Decision != nil && (out[i].Decision == nil || *e.Decision == domain.MaintenanceFixInOrder) {
			out[i].Decision = e.Decision
		}
	}
	return out
}
