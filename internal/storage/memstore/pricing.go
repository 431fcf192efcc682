package memstore

import (
	"context"
	"slices"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

func (s *Store) CreateLineItem(_ context.Context, item *domain.LineItem) error {
	return s.do(func(st *state) error {
		for _, li := range st.lineItems {
			if li.PlatformID == item.PlatformID && li.Code == item.Code {
				return domain.Conflict("line item code %s already exists", item.Code)
			}
		}
		st.lineItems = append(st.lineItems, *item)
		return nil
	})
}

func (s *Store) GetLineItem(_ context.Context, id string) (*domain.LineItem, error) {
	var out *domain.LineItem
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.lineItems, func(li domain.LineItem) bool { return li.ID == id }); i >= 0 {
			out = ptr(st.lineItems[i])
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateLineItem(_ context.Context, item *domain.LineItem) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.lineItems, func(li domain.LineItem) bool { return li.ID == item.ID })
		if i < 0 {
			return domain.NotFound("line item %s not found", item.ID)
		}
		st.lineItems[i] = *item
		return nil
	})
}

func (s *Store) ListLineItems(_ context.Context, orderID string) ([]domain.LineItem, error) {
	var out []domain.LineItem
	err := s.do(func(st *state) error {
		for _, li := range st.lineItems {
			if li.OrderID == orderID {
				out = append(out, li)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CountLineItems(_ context.Context, platformID string) (int, error) {
	n := 0
	err := s.do(func(st *state) error {
		for _, li := range st.lineItems {
			if li.PlatformID == platformID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) GetServiceType(_ context.Context, id string) (*domain.ServiceType, error) {
	var out *domain.ServiceType
	s.read(func(ref *reference) {
		if i := slices.IndexFunc(ref.serviceTypes, func(t domain.ServiceType) bool { return t.ID == id }); i >= 0 {
			out = ptr(ref.serviceTypes[i])
		}
	})
	return out, nil
}

func (s *Store) CreateReskin(_ context.Context, r *domain.ReskinRequest) error {
	return s.do(func(st *state) error {
		for _, x := range st.reskins {
			if x.OrderItemID == r.OrderItemID {
				return domain.Conflict("order item %s already has a reskin request", r.OrderItemID)
			}
		}
		st.reskins = append(st.reskins, copyReskin(*r))
		return nil
	})
}

func (s *Store) GetReskin(_ context.Context, id string) (*domain.ReskinRequest, error) {
	var out *domain.ReskinRequest
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.reskins, func(r domain.ReskinRequest) bool { return r.ID == id }); i >= 0 {
			out = ptr(copyReskin(st.reskins[i]))
		}
		return nil
	})
	return out, err
}

func (s *Store) GetReskinByOrderItem(_ context.Context, orderItemID string) (*domain.ReskinRequest, error) {
	var out *domain.ReskinRequest
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.reskins, func(r domain.ReskinRequest) bool { return r.OrderItemID == orderItemID }); i >= 0 {
			out = ptr(copyReskin(st.reskins[i]))
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateReskin(_ context.Context, r *domain.ReskinRequest) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.reskins, func(x domain.ReskinRequest) bool { return x.ID == r.ID })
		if i < 0 {
			return domain.NotFound("reskin request %s not found", r.ID)
		}
		st.reskins[i] = copyReskin(*r)
		return nil
	})
}

func (s *Store) ListOrderReskins(_ context.Context, orderID string) ([]domain.ReskinRequest, error) {
	var out []domain.ReskinRequest
	err := s.do(func(st *state) error {
		for _, r := range st.reskins {
			if r.OrderID == orderID {
				out = append(out, copyReskin(r))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FindPricingConfig(_ context.Context, platformID string, companyID *string) (*domain.PricingConfig, error) {
	var out *domain.PricingConfig
	s.read(func(ref *reference) {
		for _, c := range ref.pricingConfigs {
			if c.PlatformID == platformID && c.IsActive && sameOptional(c.CompanyID, companyID) {
				out = ptr(c)
				return
			}
		}
	})
	return out, nil
}

func (s *Store) FindTransportRate(_ context.Context, q storage.TransportRateQuery) (*domain.TransportRate, error) {
	var out *domain.TransportRate
	s.read(func(ref *reference) {
		for _, r := range ref.transportRates {
			if r.PlatformID == q.PlatformID && r.IsActive && sameOptional(r.CompanyID, q.CompanyID) &&
				r.Emirate == q.Emirate && r.TripType == q.TripType && r.VehicleType == q.VehicleType {
				out = ptr(r)
				return
			}
		}
	})
	return out, nil
}

func (s *Store) GetPlatformSettings(_ context.Context, platformID string) (*domain.PlatformSettings, error) {
	var out *domain.PlatformSettings
	s.read(func(ref *reference) {
		if i := slices.IndexFunc(ref.settings, func(p domain.PlatformSettings) bool { return p.PlatformID == platformID }); i >= 0 {
			ps := ref.settings[i]
			ps.WeekendDays = slices.Clone(ps.WeekendDays)
			out = &ps
		}
	})
	return out, nil
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
