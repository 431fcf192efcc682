package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		wantErr error
	}{
		{"review to quoted", domain.OrderStatusPricingReview, domain.OrderStatusQuoted, nil},
		{"quoted to confirmed", domain.OrderStatusQuoted, domain.OrderStatusConfirmed, nil},
		{"in use to awaiting return", domain.OrderStatusInUse, domain.OrderStatusAwaitingReturn, nil},
		{"skip ahead", domain.OrderStatusPricingReview, domain.OrderStatusInTransit, domain.ErrInvalidState},
		{"backwards from delivered", domain.OrderStatusDelivered, domain.OrderStatusInTransit, domain.ErrInvalidState},
		{"from closed", domain.OrderStatusClosed, domain.OrderStatusInUse, domain.ErrInvalidState},
		{"from cancelled", domain.OrderStatusCancelled, domain.OrderStatusPricingReview, domain.ErrInvalidState},
		{"from declined", domain.OrderStatusDeclined, domain.OrderStatusQuoted, domain.ErrInvalidState},
		{"unknown target", domain.OrderStatusQuoted, domain.OrderStatus("SHIPPED"), domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCancelGuard(t *testing.T) {
	cancellable := []domain.OrderStatus{
		domain.OrderStatusDraft, domain.OrderStatusSubmitted, domain.OrderStatusPricingReview,
		domain.OrderStatusPendingApproval, domain.OrderStatusQuoted, domain.OrderStatusConfirmed,
		domain.OrderStatusAwaitingFabrication, domain.OrderStatusInPreparation,
	}
	for _, s := range cancellable {
		assert.NoError(t, CheckCancel(s), s)
	}

	blocked := []domain.OrderStatus{
		domain.OrderStatusReadyForDelivery, domain.OrderStatusInTransit, domain.OrderStatusDelivered,
		domain.OrderStatusInUse, domain.OrderStatusAwaitingReturn, domain.OrderStatusReturnInTransit,
		domain.OrderStatusClosed, domain.OrderStatusDeclined, domain.OrderStatusCancelled,
	}
	for _, s := range blocked {
		assert.ErrorIs(t, CheckCancel(s), domain.ErrInvalidState, s)
	}
}

func TestCheckVehicleChange(t *testing.T) {
	reason := "client needs a bigger truck"

	require.NoError(t, CheckVehicleChange(domain.OrderStatusPricingReview, domain.RoleAdmin, reason))
	require.NoError(t, CheckVehicleChange(domain.OrderStatusPendingApproval, domain.RoleLogistics, reason))

	assert.ErrorIs(t, CheckVehicleChange(domain.OrderStatusQuoted, domain.RoleAdmin, reason), domain.ErrInvalidState)
	assert.ErrorIs(t, CheckVehicleChange(domain.OrderStatusPricingReview, domain.RoleClient, reason), domain.ErrForbidden)
	assert.ErrorIs(t, CheckVehicleChange(domain.OrderStatusPricingReview, domain.RoleAdmin, "too short"), domain.ErrValidation)
	assert.ErrorIs(t, CheckVehicleChange(domain.OrderStatusPricingReview, domain.RoleAdmin, "   padded   "), domain.ErrValidation)
}

func TestLineItemsEditable(t *testing.T) {
	assert.NoError(t, CheckLineItemsEditable(domain.OrderStatusPricingReview))
	assert.NoError(t, CheckLineItemsEditable(domain.OrderStatusPendingApproval))
	assert.ErrorIs(t, CheckLineItemsEditable(domain.OrderStatusQuoted), domain.ErrInvalidState)
	assert.ErrorIs(t, CheckLineItemsEditable(domain.OrderStatusConfirmed), domain.ErrInvalidState)
}

func TestHoldsBooking(t *testing.T) {
	assert.True(t, HoldsBooking(domain.OrderStatusConfirmed))
	assert.True(t, HoldsBooking(domain.OrderStatusAwaitingReturn))
	assert.False(t, HoldsBooking(domain.OrderStatusAwaitingFabrication))
	assert.False(t, HoldsBooking(domain.OrderStatusReturnInTransit))
	assert.False(t, HoldsBooking(domain.OrderStatusQuoted))
}

func TestFinancialTransitions(t *testing.T) {
	assert.NoError(t, CheckFinancialTransition(domain.FinancialPendingQuote, domain.FinancialQuoteSent))
	assert.NoError(t, CheckFinancialTransition(domain.FinancialInvoiced, domain.FinancialPaid))
	assert.ErrorIs(t, CheckFinancialTransition(domain.FinancialPaid, domain.FinancialCancelled), domain.ErrInvalidState)
	assert.ErrorIs(t, CheckFinancialTransition(domain.FinancialPendingQuote, domain.FinancialPaid), domain.ErrInvalidState)
}
