package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

func copyOrder(o domain.Order) domain.Order {
	o.Pricing = slices.Clone(o.Pricing)
	o.Items = nil
	return o
}

func (s *Store) CreateOrder(_ context.Context, order *domain.Order) error {
	return s.do(func(st *state) error {
		for _, o := range st.orders {
			if o.ID == order.ID {
				return domain.Conflict("order %s already exists", order.ID)
			}
			if o.OrderCode == order.OrderCode {
				return domain.Conflict("order code %s already exists", order.OrderCode)
			}
		}
		st.orders = append(st.orders, copyOrder(*order))
		return nil
	})
}

func (s *Store) CreateOrderItem(_ context.Context, item *domain.OrderItem) error {
	return s.do(func(st *state) error {
		st.orderItems = append(st.orderItems, *item)
		return nil
	})
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := s.do(func(st *state) error {
		for _, o := range st.orders {
			if o.ID == id && o.DeletedAt == nil {
				out = ptr(copyOrder(o))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateOrder(_ context.Context, order *domain.Order) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.orders, func(o domain.Order) bool { return o.ID == order.ID })
		if i < 0 {
			return domain.NotFound("order %s not found", order.ID)
		}
		st.orders[i] = copyOrder(*order)
		return nil
	})
}

func (s *Store) ListOrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := s.do(func(st *state) error {
		for _, it := range st.orderItems {
			if it.OrderID == orderID {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) GetOrderItem(_ context.Context, id string) (*domain.OrderItem, error) {
	var out *domain.OrderItem
	err := s.do(func(st *state) error {
		if i := slices.IndexFunc(st.orderItems, func(it domain.OrderItem) bool { return it.ID == id }); i >= 0 {
			out = ptr(st.orderItems[i])
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateOrderItem(_ context.Context, item *domain.OrderItem) error {
	return s.do(func(st *state) error {
		i := slices.IndexFunc(st.orderItems, func(it domain.OrderItem) bool { return it.ID == item.ID })
		if i < 0 {
			return domain.NotFound("order item %s not found", item.ID)
		}
		st.orderItems[i] = *item
		return nil
	})
}

func (s *Store) CountOrdersCreatedBetween(_ context.Context, from, to time.Time) (int, error) {
	n := 0
	err := s.do(func(st *state) error {
		for _, o := range st.orders {
			if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) ListOrdersEndingOn(_ context.Context, status domain.OrderStatus, day time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := s.do(func(st *state) error {
		for _, o := range st.orders {
			if o.Status == status && o.DeletedAt == nil && sameDay(o.EventEnd, day) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) AppendStatusHistory(_ context.Context, entry *domain.StatusEntry) error {
	return s.do(func(st *state) error {
		st.statusHistory = append(st.statusHistory, *entry)
		return nil
	})
}

func (s *Store) AppendFinancialHistory(_ context.Context, entry *domain.FinancialEntry) error {
	return s.do(func(st *state) error {
		st.financialHistory = append(st.financialHistory, *entry)
		return nil
	})
}

func (s *Store) ListStatusHistory(_ context.Context, orderID string) ([]domain.StatusEntry, error) {
	var out []domain.StatusEntry
	err := s.do(func(st *state) error {
		for _, e := range st.statusHistory {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListFinancialHistory(_ context.Context, orderID string) ([]domain.FinancialEntry, error) {
	var out []domain.FinancialEntry
	err := s.do(func(st *state) error {
		for _, e := range st.financialHistory {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
