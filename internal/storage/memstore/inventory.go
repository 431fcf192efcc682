package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

func (s *Store) CreateAsset(_ context.Context, asset *domain.Asset) error {
	return s.do(func(st *state) error {
		for _, a := range st.assets {
			if a.ID == asset.ID {
				return domain.Conflict("asset %s already exists", asset.ID)
			}
			if a.QRCode == asset.QRCode {
				return domain.Conflict("qr code %s is already in use", asset.QRCode)
			}
		}
		st.assets = append(st.assets, copyAsset(*asset))
		return nil
	})
}

func (s *Store) GetAsset(_ context.Context, id string) (*domain.Asset, error) {
	var out *domain.Asset
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.assets, func(a domain.Asset) bool { return a.ID == id }); i >= 0 {
			out = ptr(copyAsset(st.assets[i]))
		}
		return nil
	})
	return out, err
}

func (s *Store) GetAssetByQRCode(_ context.Context, qrCode string) (*domain.Asset, error) {
	var out *domain.Asset
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.assets, func(a domain.Asset) bool { return a.QRCode == qrCode }); i >= 0 {
			out = ptr(copyAsset(st.assets[i]))
		}
		return nil
	})
	return out, err
}

func (s *Store) ListAssets(_ context.Context, ids []string) ([]domain.Asset, error) {
	var out []domain.Asset
	err := s.do(func(st *state) error {
		for _, a := range st.assets {
			if slices.Contains(ids, a.ID) {
				out = append(out, copyAsset(a))
			}
		}
		return nil
	})
	return out, err
}

// LockAssets is a no-op: transactions already hold the store mutex.
func (s *Store) LockAssets(context.Context, []string) error {
	return nil
}

func (s *Store) UpdateAsset(_ context.Context, asset *domain.Asset) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.assets, func(a domain.Asset) bool { return a.ID == asset.ID })
		if i < 0 {
			return domain.NotFound("asset %s not found", asset.ID)
		}
		for j, a := range st.assets {
			if j != i && a.QRCode == asset.QRCode {
				return domain.Conflict("qr code %s is already in use", asset.QRCode)
			}
		}
		st.assets[i] = copyAsset(*asset)
		return nil
	})
}

func (s *Store) CreateBooking(_ context.Context, booking *domain.AssetBooking) error {
	return s.do(func(st *state) error {
		st.bookings = append(st.bookings, *booking)
		return nil
	})
}

func (s *Store) ListOrderBookings(_ context.Context, orderID string) ([]domain.AssetBooking, error) {
	var out []domain.AssetBooking
	err := s.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.OrderID == orderID {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListActiveBookings(_ context.Context, assetID string, statuses []domain.OrderStatus, from, to time.Time) ([]domain.AssetBooking, error) {
	var out []domain.AssetBooking
	err := s.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.AssetID != assetID || b.BlockedFrom.After(to) || b.BlockedUntil.Before(from) {
				continue
			}
			i := slices.IndexFunc(st.orders, func(o domain.Order) bool { return o.ID == b.OrderID })
			if i < 0 || !slices.Contains(statuses, st.orders[i].Status) {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

func (s *Store) DeleteOrderBookings(_ context.Context, orderID string) (int, error) {
	n := 0
	err := s.do(func(st *state) error {
		before := len(st.bookings)
		st.bookings = slices.DeleteFunc(st.bookings, func(b domain.AssetBooking) bool { return b.OrderID == orderID })
		n = before - len(st.bookings)
		return nil
	})
	return n, err
}

func (s *Store) ReassignBookings(_ context.Context, orderID, fromAssetID, toAssetID string) error {
	return s.do(func(st *state) error {
		for i, b := range st.bookings {
			if b.OrderID == orderID && b.AssetID == fromAssetID {
				st.bookings[i].AssetID = toAssetID
			}
		}
		return nil
	})
}

func (s *Store) CreateSelfBooking(_ context.Context, item *domain.SelfBookingItem) error {
	return s.do(func(st *state) error {
		st.selfBookings = append(st.selfBookings, *item)
		return nil
	})
}

func (s *Store) GetSelfBooking(_ context.Context, id string) (*domain.SelfBookingItem, error) {
	var out *domain.SelfBookingItem
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.selfBookings, func(b domain.SelfBookingItem) bool { return b.ID == id }); i >= 0 {
			out = ptr(st.selfBookings[i])
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateSelfBooking(_ context.Context, item *domain.SelfBookingItem) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.selfBookings, func(b domain.SelfBookingItem) bool { return b.ID == item.ID })
		if i < 0 {
			return domain.NotFound("self booking %s not found", item.ID)
		}
		st.selfBookings[i] = *item
		return nil
	})
}

func (s *Store) ListOutstandingSelfBookings(_ context.Context, assetID string) ([]domain.SelfBookingItem, error) {
	var out []domain.SelfBookingItem
	err := s.do(func(st *state) error {
		for _, b := range st.selfBookings {
			if b.AssetID == assetID && b.Status == domain.SelfBookingOut {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) AppendScanEvent(_ context.Context, event *domain.ScanEvent) error {
	return s.do(func(st *state) error {
		st.scans = append(st.scans, copyScan(*event))
		return nil
	})
}

func (s *Store) ListScanEvents(_ context.Context, orderID string) ([]domain.ScanEvent, error) {
	var out []domain.ScanEvent
	err := s.do(func(st *state) error {
		for _, e := range st.scans {
			if e.OrderID == orderID {
				out = append(out, copyScan(e))
			}
		}
		return nil
	})
	return out, err
}
