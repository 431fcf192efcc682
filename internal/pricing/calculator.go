package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

var hundred = decimal.NewFromInt(100)

type MarginOverride struct {
	Percent decimal.Decimal
	Reason  string
}

type Input struct {
	PlatformID string
	CompanyID  string
	Volume     decimal.Decimal
	CityID     string
	TripType   domain.TripType
	// VehicleType is ignored by Estimate, which always prices STANDARD.
	VehicleType         domain.VehicleType
	VehicleChangeReason *string
	MarginOverride      *MarginOverride
	ActorID             string
}

// LineTotals are the non-voided line item sums of an order.
type LineTotals struct {
	Catalog decimal.Decimal
	Custom  decimal.Decimal
}

type Calculator struct {
	resolver *Resolver
	regions  *RegionTable
	now      func() time.Time
}

func NewCalculator(rates storage.RateStore, regions *RegionTable, now func() time.Time) *Calculator {
	if regions == nil {
		regions = DefaultRegions()
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{
		resolver: NewResolver(rates),
		regions:  regions,
		now:      func() time.Time { return now().UTC() },
	}
}

func (c *Calculator) Resolver() *Resolver {
	return c.resolver
}

// Estimate prices warehouse operations and STANDARD transport plus margin.
func (c *Calculator) Estimate(ctx context.Context, in Input) (Breakdown, error) {
	in.VehicleType = domain.VehicleStandard
	in.VehicleChangeReason = nil
	return c.calculate(ctx, KindEstimate, in, LineTotals{Catalog: decimal.Zero, Custom: decimal.Zero})
}

// Full folds catalog line items into the marginable subtotal and adds
// custom line items after margin.
func (c *Calculator) Full(ctx context.Context, in Input, lines LineTotals) (Breakdown, error) {
	if in.VehicleType == "" {
		in.VehicleType = domain.VehicleStandard
	}
	return c.calculate(ctx, KindFull, in, lines)
}

// VehicleUpgrade validates the reason for a vehicle change and prices the
// order with the new vehicle. A vehicle without a transport rate is
// NotFound.
func (c *Calculator) VehicleUpgrade(ctx context.Context, in Input, vehicle domain.VehicleType, reason string, lines LineTotals) (Breakdown, error) {
	if !vehicle.Valid() {
		return Breakdown{}, domain.Validation("unknown vehicle type %q", vehicle)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < lifecycle.MinReasonLength {
		return Breakdown{}, domain.Validation("vehicle change reason must be at least %d characters", lifecycle.MinReasonLength)
	}
	in.VehicleType = vehicle
	in.VehicleChangeReason = &reason
	return c.Full(ctx, in, lines)
}

func (c *Calculator) calculate(ctx context.Context, kind Kind, in Input, lines LineTotals) (Breakdown, error) {
	if in.Volume.IsNegative() {
		return Breakdown{}, domain.Validation("volume cannot be negative")
	}
	if !in.TripType.Valid() {
		return Breakdown{}, domain.Validation("unknown trip type %q", in.TripType)
	}

	company := optional(in.CompanyID)
	cfg, err := c.resolver.PricingConfig(ctx, in.PlatformID, company)
	if err != nil {
		return Breakdown{}, err
	}

	settings, err := c.resolver.Settings(ctx, in.PlatformID)
	if err != nil {
		return Breakdown{}, err
	}

	marginPercent := settings.MarginPercent
	var overrideReason *string
	if in.MarginOverride != nil {
		reason := strings.TrimSpace(in.MarginOverride.Reason)
		if reason == "" {
			return Breakdown{}, domain.Validation("a margin override requires a reason")
		}
		if in.MarginOverride.Percent.IsNegative() {
			return Breakdown{}, domain.Validation("margin percent cannot be negative")
		}
		marginPercent = in.MarginOverride.Percent
		overrideReason = &reason
	}

	emirate := c.regions.Resolve(in.CityID)
	rate, err := c.resolver.TransportRate(ctx, storage.TransportRateQuery{
		PlatformID:  in.PlatformID,
		CompanyID:   company,
		Emirate:     emirate,
		TripType:    in.TripType,
		VehicleType: in.VehicleType,
	})
	if err != nil {
		return Breakdown{}, err
	}

	transport := decimal.Zero
	missing := rate == nil
	if missing && in.VehicleType != domain.VehicleStandard {
		return Breakdown{}, domain.NotFound("no transport rate defined for %s %s %s", emirate, in.TripType, in.VehicleType)
	}
	if !missing {
		transport = rate.Rate
	}

	baseOps := in.Volume.Mul(cfg.WarehouseOpsRate)
	subtotal := baseOps.Add(transport).Add(lines.Catalog)
	margin := subtotal.Mul(marginPercent).Div(hundred)
	total := subtotal.Add(margin).Add(lines.Custom)

	return Breakdown{
		Version:              SchemaVersion,
		Kind:                 kind,
		CalculatedAt:         c.now(),
		CalculatedBy:         in.ActorID,
		Volume:               in.Volume.Round(3),
		WarehouseOpsRate:     cfg.WarehouseOpsRate.Round(2),
		BaseOperations:       baseOps.Round(2),
		Emirate:              emirate,
		TripType:             in.TripType,
		VehicleType:          in.VehicleType,
		VehicleChanged:       in.VehicleType != domain.VehicleStandard,
		VehicleChangeReason:  in.VehicleChangeReason,
		Transport:            transport.Round(2),
		TransportRateMissing: missing,
		CatalogTotal:         lines.Catalog.Round(2),
		LogisticsSubtotal:    subtotal.Round(2),
		MarginPercent:        marginPercent,
		MarginOverridden:     overrideReason != nil,
		MarginOverrideReason: overrideReason,
		MarginAmount:         margin.Round(2),
		CustomTotal:          lines.Custom.Round(2),
		Total:                total.Round(2),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
