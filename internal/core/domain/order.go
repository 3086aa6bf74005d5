package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "Placed"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDelivered  OrderStatus = "Delivered"
)

// orderTransitions lists, for each status, the statuses directly reachable from it.
// A status mapped to an empty set is terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:     {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusDelivered},
	OrderStatusDelivered:  {},
}

// ParseOrderStatus matches s case-insensitively against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for status := range orderTransitions {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return OrderStatus(s), false
}

func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPlaced, OrderStatusProcessing, OrderStatusDelivered}
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the allowed-next set for s.
func (s OrderStatus) NextStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

func (s OrderStatus) String() string {
	return string(s)
}

type LineItem struct {
	ProductRef  string          `json:"productRef"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Order is a financial record: line items and amounts are frozen at creation
// and only Status changes afterwards.
type Order struct {
	ID              string          `json:"id"`
	ContactEmail    string          `json:"contactEmail"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	LineItems       []LineItem      `json:"lineItems"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}
