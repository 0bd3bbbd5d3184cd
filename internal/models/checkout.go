package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutEventCompleted is the only gateway event type acted on. Everything
// else is acknowledged and ignored.
const CheckoutEventCompleted = "checkout.session.completed"

// CheckoutEvent is the payment gateway's webhook payload. Signature
// verification happens upstream; this type only models the contract.
type CheckoutEvent struct {
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession carries the external session identifier used for
// idempotency plus the metadata attached when the session was created.
type CheckoutSession struct {
	ID            string           `json:"id"`
	PaymentIntent string           `json:"payment_intent"`
	Metadata      CheckoutMetadata `json:"metadata"`
}

// CheckoutMetadata is the opaque map attached at session creation time.
// Gateway metadata values arrive as strings.
type CheckoutMetadata struct {
	Cart      string `json:"cart"`
	Method    string `json:"method"`
	User      string `json:"user"`
	AddressID string `json:"address_id"`
}

// ParseCheckoutEvent decodes a raw webhook payload
func ParseCheckoutEvent(payload []byte) (*CheckoutEvent, error) {
	var event CheckoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}
	return &event, nil
}

// IsCheckoutCompleted reports whether the event should materialize an order
func (e *CheckoutEvent) IsCheckoutCompleted() bool {
	return e.Type == CheckoutEventCompleted
}

// PaymentConfirmation is a validated checkout.session.completed event
type PaymentConfirmation struct {
	SessionID      string
	PaymentID      string
	UserID         int
	DeliveryMethod DeliveryMethod
	AddressID      int
}

// Confirmation validates the session's metadata and converts it into a
// typed payment confirmation. A malformed session is rejected without side
// effects.
func (s *CheckoutSession) Confirmation() (*PaymentConfirmation, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("checkout session missing id")
	}

	userID, err := strconv.Atoi(s.Metadata.User)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q in session metadata: %w", s.Metadata.User, err)
	}

	addressID, err := strconv.Atoi(s.Metadata.AddressID)
	if err != nil {
		return nil, fmt.Errorf("invalid address id %q in session metadata: %w", s.Metadata.AddressID, err)
	}

	method := DeliveryMethod(s.Metadata.Method)
	if !method.IsValid() {
		return nil, fmt.Errorf("invalid delivery method %q in session metadata", s.Metadata.Method)
	}

	return &PaymentConfirmation{
		SessionID:      s.ID,
		PaymentID:      s.PaymentIntent,
		UserID:         userID,
		DeliveryMethod: method,
		AddressID:      addressID,
	}, nil
}

// StockDecrement is one portion's share of an order's stock consumption
type StockDecrement struct {
	PortionID int
	Quantity  int
}

// OrderDraft is the fully computed plan for materializing one order. The
// storage layer applies it in a single transaction: either the whole draft
// commits or none of it does.
type OrderDraft struct {
	UserID            int
	TotalPrice        decimal.Decimal
	Date              time.Time
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	DeliveryMethod    DeliveryMethod
	ShippingAddressID int
	StripeSessionID   string
	StripePaymentID   string
	ItemIDs           []int
	Decrements        []StockDecrement
}

// BuildOrderDraft assembles the materialization plan for a buyer's unordered
// cart items. Decrements are aggregated per portion so a cart holding the
// same portion twice consumes stock once, at the combined quantity.
func BuildOrderDraft(conf *PaymentConfirmation, items []CartItem) (*OrderDraft, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	itemIDs := make([]int, 0, len(items))
	perPortion := make(map[int]int, len(items))
	portionOrder := make([]int, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
		if _, seen := perPortion[item.PortionID]; !seen {
			portionOrder = append(portionOrder, item.PortionID)
		}
		perPortion[item.PortionID] += item.Quantity
	}

	decrements := make([]StockDecrement, 0, len(portionOrder))
	for _, portionID := range portionOrder {
		decrements = append(decrements, StockDecrement{
			PortionID: portionID,
			Quantity:  perPortion[portionID],
		})
	}

	return &OrderDraft{
		UserID:            conf.UserID,
		TotalPrice:        CartTotal(items),
		Date:              time.Now().UTC(),
		Status:            OrderPending,
		PaymentStatus:     PaymentPending,
		DeliveryMethod:    conf.DeliveryMethod,
		ShippingAddressID: conf.AddressID,
		StripeSessionID:   conf.SessionID,
		StripePaymentID:   conf.PaymentID,
		ItemIDs:           itemIDs,
		Decrements:        decrements,
	}, nil
}
