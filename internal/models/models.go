package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category represents the kind of baked good a product is
type Category string

const (
	CategoryCake    Category = "CAKE"
	CategoryCupcake Category = "CUPCAKE"
	CategoryPie     Category = "PIE"
	CategoryCookie  Category = "COOKIE"
	CategoryDonut   Category = "DONUT"
	CategoryPastry  Category = "PASTRY"
)

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryCake, CategoryCupcake, CategoryPie, CategoryCookie, CategoryDonut, CategoryPastry:
		return true
	default:
		return false
	}
}

// PortionSizes returns the portion sizes sold for this category.
// Cakes and pies sell whole, mini, and by the slice; cupcakes and donuts
// additionally come in mini; everything else is whole only.
func (c Category) PortionSizes() []PortionSize {
	switch c {
	case CategoryCake, CategoryPie:
		return []PortionSize{PortionWhole, PortionMini, PortionSlice}
	case CategoryCupcake, CategoryDonut:
		return []PortionSize{PortionWhole, PortionMini}
	default:
		return []PortionSize{PortionWhole}
	}
}

// DeliveryMethod represents how an order is delivered
type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "STANDARD"
	DeliveryExpress  DeliveryMethod = "EXPRESS"
	DeliveryNextDay  DeliveryMethod = "NEXT_DAY"
	DeliveryPickUp   DeliveryMethod = "PICK_UP"
)

// IsValid checks if the delivery method is valid
func (d DeliveryMethod) IsValid() bool {
	switch d {
	case DeliveryStandard, DeliveryExpress, DeliveryNextDay, DeliveryPickUp:
		return true
	default:
		return false
	}
}

// PaymentStatus represents the payment state of an order
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Product represents a catalog entry. Price and stock live on its portions.
type Product struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Category    Category  `json:"category" db:"category"`
	Image       string    `json:"image" db:"image"`
	Portions    []Portion `json:"portions,omitempty"`
}

// Portion is one (product, size) pairing with its own stock and price.
type Portion struct {
	ID           int             `json:"id" db:"id"`
	ProductID    int             `json:"product_id" db:"product_id"`
	Size         PortionSize     `json:"size" db:"size"`
	OptimalStock int             `json:"optimal_stock" db:"optimal_stock"`
	Stock        int             `json:"stock" db:"stock"`
	Price        decimal.Decimal `json:"price" db:"price"`
}

// SoldOut returns true when the portion has no stock left
func (p *Portion) SoldOut() bool {
	return p.Stock == 0
}

// CartItem is a buyer's pending selection, or a finalized order line once
// ordered is set. ordered == true if and only if OrderID is non-nil.
type CartItem struct {
	ID        int             `json:"id" db:"id"`
	UserID    int             `json:"user_id" db:"user_id"`
	ProductID int             `json:"product_id" db:"product_id"`
	PortionID int             `json:"portion_id" db:"portion_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Ordered   bool            `json:"ordered" db:"ordered"`
	OrderID   *int            `json:"order_id,omitempty" db:"order_id"`
	Product   *Product        `json:"product,omitempty"`
	Portion   *Portion        `json:"portion,omitempty"`
}

// CartTotal sums the stored per-line prices of the given items. Line prices
// are already quantity-scaled at cart time; they are never re-multiplied here.
func CartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}

// Order is one checkout's worth of cart items
type Order struct {
	ID                int             `json:"id" db:"id"`
	UserID            int             `json:"user_id" db:"user_id"`
	TotalPrice        decimal.Decimal `json:"total_price" db:"total_price"`
	Date              time.Time       `json:"date" db:"date"`
	Status            OrderStatus     `json:"status" db:"status"`
	StripeSessionID   *string         `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	StripePaymentID   *string         `json:"stripe_payment_id,omitempty" db:"stripe_payment_id"`
	DeliveryMethod    DeliveryMethod  `json:"delivery_method" db:"delivery_method"`
	PaymentStatus     PaymentStatus   `json:"payment_status" db:"payment_status"`
	ShippingAddressID int             `json:"shipping_address_id" db:"shipping_address_id"`
	Items             []CartItem      `json:"items,omitempty"`
	Task              *Task           `json:"task,omitempty"`
}

// Request/Response models

// AddToCartRequest represents a request to add an item to the cart
type AddToCartRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	PortionID int `json:"portion_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents a request to update cart item quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"` // 0 means remove
}

// SetPortionStockRequest represents an administrative restock
type SetPortionStockRequest struct {
	Stock int `json:"stock" binding:"min=0"`
}

// StartOrdersRequest represents a batch fulfillment start. The batch is
// all-or-nothing: one bad id rolls back every order in it.
type StartOrdersRequest struct {
	OrderIDs []int `json:"order_ids" binding:"required,min=1"`
}

// FulfillmentListRequest represents query parameters for fulfillment listings
type FulfillmentListRequest struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=100"`
	DeliveryMethod string `form:"delivery_method"`
	Search         string `form:"search"` // order id lookup
}

// OrderListRequest represents query parameters for a buyer's order history
type OrderListRequest struct {
	Page   int  `form:"page" binding:"omitempty,min=1"`
	Recent bool `form:"recent"`
}

// OrderListResponse represents a paginated order listing
type OrderListResponse struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
