package model

import (
	"errors"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Payment method types.
const (
	PaymentCreditCard = "credit_card"
	PaymentPayPal     = "paypal"
	PaymentStripe     = "stripe"
)

// MaxOrderNotes bounds Order.Notes in characters.
const MaxOrderNotes = 500

var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
	OrderCancelled:  {OrderRefunded},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem is a snapshot of a product at order time.
type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl"`
}

// ShippingAddress is stored inline with the order.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// PaymentMethod is the payment tag plus provider-specific details.
type PaymentMethod struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
}

// Order mirrors the 'orders' table and its items.
type Order struct {
	ID                string          `json:"_id"`
	UserID            string          `json:"userId"`
	Items             []OrderItem     `json:"items"`
	ShippingAddress   ShippingAddress `json:"shippingAddress"`
	PaymentMethod     PaymentMethod   `json:"paymentMethod"`
	Status            OrderStatus     `json:"status"`
	Subtotal          float64         `json:"subtotal"`
	Tax               float64         `json:"tax"`
	Shipping          float64         `json:"shipping"`
	Discount          float64         `json:"discount"`
	TotalAmount       float64         `json:"totalAmount"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ComputeTotals sets TotalAmount = subtotal + tax + shipping - discount.
// It runs before an order is written.
func (o *Order) ComputeTotals() {
	total := Cents(o.Subtotal) + Cents(o.Tax) + Cents(o.Shipping) - Cents(o.Discount)
	o.TotalAmount = Amount(total)
}

// Validate checks the invariants an order must hold before it is written.
func (o *Order) Validate() error {
	var errs []error
	if len(o.Items) == 0 {
		errs = append(errs, errors.New("order must have at least one item"))
	}
	for _, it := range o.Items {
		if it.Quantity < 1 {
			errs = append(errs, errors.New("item "+it.ProductID+": quantity must be at least 1"))
		}
		if it.Price < 0 {
			errs = append(errs, errors.New("item "+it.ProductID+": price cannot be negative"))
		}
	}
	if o.Subtotal < 0 || o.Tax < 0 || o.Shipping < 0 || o.Discount < 0 {
		errs = append(errs, errors.New("amounts cannot be negative"))
	}
	if !o.Status.Valid() {
		errs = append(errs, errors.New("unknown status "+string(o.Status)))
	}
	switch o.PaymentMethod.Type {
	case PaymentCreditCard, PaymentPayPal, PaymentStripe:
	default:
		errs = append(errs, errors.New("unknown payment method "+o.PaymentMethod.Type))
	}
	if len([]rune(o.Notes)) > MaxOrderNotes {
		errs = append(errs, errors.New("notes cannot exceed 500 characters"))
	}
	return errors.Join(errs...)
}
