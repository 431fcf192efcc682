// Package lifecycle holds the order status and financial status graphs and
// the guards evaluated against them. It has no storage dependencies.
package lifecycle

import (
	"strings"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

// InitialStatus is where client submissions land; DRAFT and SUBMITTED are
// kept for the legacy flow only.
const InitialStatus = domain.OrderStatusPricingReview

const MinReasonLength = 10

var orderGraph = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusDraft:               {domain.OrderStatusSubmitted, domain.OrderStatusCancelled},
	domain.OrderStatusSubmitted:           {domain.OrderStatusPricingReview, domain.OrderStatusCancelled},
	domain.OrderStatusPricingReview:       {domain.OrderStatusPendingApproval, domain.OrderStatusQuoted, domain.OrderStatusCancelled},
	domain.OrderStatusPendingApproval:     {domain.OrderStatusQuoted, domain.OrderStatusPricingReview, domain.OrderStatusCancelled},
	domain.OrderStatusQuoted:              {domain.OrderStatusConfirmed, domain.OrderStatusDeclined, domain.OrderStatusPendingApproval, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:           {domain.OrderStatusAwaitingFabrication, domain.OrderStatusInPreparation, domain.OrderStatusCancelled},
	domain.OrderStatusAwaitingFabrication: {domain.OrderStatusInPreparation, domain.OrderStatusCancelled},
	domain.OrderStatusInPreparation:       {domain.OrderStatusReadyForDelivery, domain.OrderStatusCancelled},
	domain.OrderStatusReadyForDelivery:    {domain.OrderStatusInTransit},
	domain.OrderStatusInTransit:           {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:           {domain.OrderStatusInUse},
	domain.OrderStatusInUse:               {domain.OrderStatusAwaitingReturn},
	domain.OrderStatusAwaitingReturn:      {domain.OrderStatusReturnInTransit, domain.OrderStatusClosed},
	domain.OrderStatusReturnInTransit:     {domain.OrderStatusClosed},
}

var financialGraph = map[domain.FinancialStatus][]domain.FinancialStatus{
	domain.FinancialPendingQuote:   {domain.FinancialQuoteSent, domain.FinancialCancelled},
	domain.FinancialQuoteSent:      {domain.FinancialQuoteAccepted, domain.FinancialPendingQuote, domain.FinancialCancelled},
	domain.FinancialQuoteAccepted:  {domain.FinancialPendingInvoice, domain.FinancialCancelled},
	domain.FinancialPendingInvoice: {domain.FinancialInvoiced, domain.FinancialCancelled},
	domain.FinancialInvoiced:       {domain.FinancialPaid, domain.FinancialCancelled},
}

var terminal = map[domain.OrderStatus]bool{
	domain.OrderStatusClosed:    true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusDeclined:  true,
}

// Items have left the warehouse, or the order is already terminal.
var nonCancellable = map[domain.OrderStatus]bool{
	domain.OrderStatusReadyForDelivery: true,
	domain.OrderStatusInTransit:        true,
	domain.OrderStatusDelivered:        true,
	domain.OrderStatusInUse:            true,
	domain.OrderStatusAwaitingReturn:   true,
	domain.OrderStatusReturnInTransit:  true,
	domain.OrderStatusClosed:           true,
	domain.OrderStatusDeclined:         true,
	domain.OrderStatusCancelled:        true,
}

// BookingStatuses are the order statuses whose bookings count against
// availability.
var BookingStatuses = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusInPreparation,
	domain.OrderStatusReadyForDelivery,
	domain.OrderStatusInTransit,
	domain.OrderStatusDelivered,
	domain.OrderStatusInUse,
	domain.OrderStatusAwaitingReturn,
}

var pricingEditable = map[domain.OrderStatus]bool{
	domain.OrderStatusPricingReview:   true,
	domain.OrderStatusPendingApproval: true,
}

func IsTerminal(s domain.OrderStatus) bool {
	return terminal[s]
}

func Known(s domain.OrderStatus) bool {
	if terminal[s] {
		return true
	}
	_, ok := orderGraph[s]
	return ok
}

func CanTransition(from, to domain.OrderStatus) bool {
	for _, next := range orderGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns InvalidState when to is not reachable from from
// in one step.
func CheckTransition(from, to domain.OrderStatus) error {
	if IsTerminal(from) {
		return domain.InvalidState("order is %s and can no longer change status", from)
	}
	if !Known(to) {
		return domain.Validation("unknown order status %q", to)
	}
	if !CanTransition(from, to) {
		return domain.InvalidState("cannot transition order from %s to %s", from, to)
	}
	return nil
}

func CheckFinancialTransition(from, to domain.FinancialStatus) error {
	for _, next := range financialGraph[from] {
		if next == to {
			return nil
		}
	}
	return domain.InvalidState("cannot transition financial status from %s to %s", from, to)
}

func CanCancel(s domain.OrderStatus) bool {
	return !nonCancellable[s]
}

func CheckCancel(s domain.OrderStatus) error {
	if !CanCancel(s) {
		return domain.InvalidState("order in status %s cannot be cancelled", s)
	}
	return nil
}

func HoldsBooking(s domain.OrderStatus) bool {
	for _, b := range BookingStatuses {
		if b == s {
			return true
		}
	}
	return false
}

// PricingEditable reports whether the order's price may still change.
func PricingEditable(s domain.OrderStatus) bool {
	return pricingEditable[s]
}

func CheckLineItemsEditable(s domain.OrderStatus) error {
	if !pricingEditable[s] {
		return domain.InvalidState("line items can only be changed during pricing review or pending approval, order is %s", s)
	}
	return nil
}

// CheckVehicleChange validates the status, actor role and reason for a
// vehicle type change.
func CheckVehicleChange(s domain.OrderStatus, role domain.Role, reason string) error {
	if !pricingEditable[s] {
		return domain.InvalidState("vehicle type can only be changed during pricing review or pending approval, order is %s", s)
	}
	if role != domain.RoleAdmin && role != domain.RoleLogistics {
		return domain.Forbidden("only admin or logistics users can change the vehicle type")
	}
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return domain.Validation("vehicle change reason must be at least %d characters", MinReasonLength)
	}
	return nil
}

// FinancialFor returns the financial status implied by entering an order
// status, if any.
func FinancialFor(s domain.OrderStatus) (domain.FinancialStatus, bool) {
	switch s {
	case domain.OrderStatusQuoted:
		return domain.FinancialQuoteSent, true
	case domain.OrderStatusConfirmed:
		return domain.FinancialQuoteAccepted, true
	case domain.OrderStatusCancelled:
		return domain.FinancialCancelled, true
	}
	return "", false
}
