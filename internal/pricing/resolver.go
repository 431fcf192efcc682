package pricing

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

// Resolver layers company-specific rate rows over platform defaults.
type Resolver struct {
	rates storage.RateStore
}

func NewResolver(rates storage.RateStore) *Resolver {
	return &Resolver{rates: rates}
}

// PricingConfig returns the company's warehouse operations config, falling
// back to the platform default. A platform with neither is NotFound.
func (r *Resolver) PricingConfig(ctx context.Context, platformID string, companyID *string) (*domain.PricingConfig, error) {
	if companyID != nil && *companyID != "" {
		cfg, err := r.rates.FindPricingConfig(ctx, platformID, companyID)
		if err != nil {
			return nil, fmt.Errorf("find company pricing config: %w", err)
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	cfg, err := r.rates.FindPricingConfig(ctx, platformID, nil)
	if err != nil {
		return nil, fmt.Errorf("find platform pricing config: %w", err)
	}
	if cfg == nil {
		return nil, domain.NotFound("pricing configuration not found for platform %s", platformID)
	}
	return cfg, nil
}

// TransportRate returns the company override or platform default rate for
// the query. It returns (nil, nil) when no rate is defined.
func (r *Resolver) TransportRate(ctx context.Context, q storage.TransportRateQuery) (*domain.TransportRate, error) {
	if q.CompanyID != nil && *q.CompanyID != "" {
		rate, err := r.rates.FindTransportRate(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("find company transport rate: %w", err)
		}
		if rate != nil {
			return rate, nil
		}
	}

	q.CompanyID = nil
	rate, err := r.rates.FindTransportRate(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find platform transport rate: %w", err)
	}
	return rate, nil
}

// Settings returns the platform's stored settings or the defaults.
func (r *Resolver) Settings(ctx context.Context, platformID string) (domain.PlatformSettings, error) {
	ps, err := r.rates.GetPlatformSettings(ctx, platformID)
	if err != nil {
		return domain.PlatformSettings{}, fmt.Errorf("get platform settings: %w", err)
	}
	if ps == nil {
		return domain.DefaultPlatformSettings(platformID), nil
	}
	return *ps, nil
}
