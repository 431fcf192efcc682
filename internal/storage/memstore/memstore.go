// Package memstore is an in-process implementation of storage.Store. A
// transaction works on a private copy of the data that replaces the shared
// copy on success, so a failed WithinTx leaves no trace. Transactions are
// serialised by a single mutex: inside fn, transactional data must be read
// through tx, never through the outer Store.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

type state struct {
	orders           []domain.Order
	orderItems       []domain.OrderItem
	statusHistory    []domain.StatusEntry
	financialHistory []domain.FinancialEntry
	assets           []domain.Asset
	bookings         []domain.AssetBooking
	selfBookings     []domain.SelfBookingItem
	lineItems        []domain.LineItem
	reskins          []domain.ReskinRequest
	scans            []domain.ScanEvent
}

func (s *state) clone() *state {
	cp := &state{
		orders:           slices.Clone(s.orders),
		orderItems:       slices.Clone(s.orderItems),
		statusHistory:    slices.Clone(s.statusHistory),
		financialHistory: slices.Clone(s.financialHistory),
		assets:           make([]domain.Asset, len(s.assets)),
		bookings:         slices.Clone(s.bookings),
		selfBookings:     slices.Clone(s.selfBookings),
		lineItems:        slices.Clone(s.lineItems),
		reskins:          make([]domain.ReskinRequest, len(s.reskins)),
		scans:            make([]domain.ScanEvent, len(s.scans)),
	}
	for i, a := range s.assets {
		cp.assets[i] = copyAsset(a)
	}
	for i, r := range s.reskins {
		cp.reskins[i] = copyReskin(r)
	}
	for i, e := range s.scans {
		cp.scans[i] = copyScan(e)
	}
	return cp
}

// reference holds rate tables and settings. They are never written by the
// engine, so reads skip the transaction mutex.
type reference struct {
	mu             sync.RWMutex
	serviceTypes   []domain.ServiceType
	pricingConfigs []domain.PricingConfig
	transportRates []domain.TransportRate
	settings       []domain.PlatformSettings
}

type db struct {
	mu  sync.Mutex
	st  *state
	ref reference
}

type Store struct {
	db *db
	tx *state
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{db: &db{st: &state{}}}
}

func (s *Store) do(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.st)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	work := s.db.st.clone()
	if err := fn(&Store{db: s.db, tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.st = work
	return nil
}

// Seeding helpers for reference data the engine only reads.

func (s *Store) PutPricingConfig(cfg domain.PricingConfig) {
	s.db.ref.mu.Lock()
	defer s.db.ref.mu.Unlock()
	s.db.ref.pricingConfigs = append(s.db.ref.pricingConfigs, cfg)
}

func (s *Store) PutTransportRate(rate domain.TransportRate) {
	s.db.ref.mu.Lock()
	defer s.db.ref.mu.Unlock()
	s.db.ref.transportRates = append(s.db.ref.transportRates, rate)
}

func (s *Store) PutPlatformSettings(ps domain.PlatformSettings) {
	s.db.ref.mu.Lock()
	defer s.db.ref.mu.Unlock()
	if i := slices.IndexFunc(s.db.ref.settings, func(x domain.PlatformSettings) bool { return x.PlatformID == ps.PlatformID }); i >= 0 {
		s.db.ref.settings[i] = ps
		return
	}
	s.db.ref.settings = append(s.db.ref.settings, ps)
}

func (s *Store) PutServiceType(st domain.ServiceType) {
	s.db.ref.mu.Lock()
	defer s.db.ref.mu.Unlock()
	s.db.ref.serviceTypes = append(s.db.ref.serviceTypes, st)
}

func (s *Store) read(fn func(ref *reference)) {
	s.db.ref.mu.RLock()
	defer s.db.ref.mu.RUnlock()
	fn(&s.db.ref)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func ptr[T any](v T) *T {
	return &v
}

func copyAsset(a domain.Asset) domain.Asset {
	a.ConditionHistory = slices.Clone(a.ConditionHistory)
	return a
}

func copyReskin(r domain.ReskinRequest) domain.ReskinRequest {
	r.CompletionPhotos = slices.Clone(r.CompletionPhotos)
	return r
}

func copyScan(e domain.ScanEvent) domain.ScanEvent {
	e.Photos = slices.Clone(e.Photos)
	return e
}
