package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Seller       string          `json:"seller"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
	Sold         int             `json:"sold"`
	Rating       decimal.Decimal `json:"rating"`
	NumReviews   int             `json:"numReviews"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	Name    string          `json:"name"`
	Qty     int             `json:"qty" validate:"gt=0,lte=2147483647"`
	Image   string          `json:"image"`
	Price   decimal.Decimal `json:"price"`
	Product string          `json:"product" validate:"required"`
	Seller  string          `json:"seller"`
}

type ShippingAddress struct {
	FullName   string   `json:"fullName"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// PaymentResult is what the payment provider reported; it is stored as given.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// Order flags IsPaid and IsDelivered are independent and one-way.
type Order struct {
	ID              string          `json:"_id"`
	Seller          string          `json:"seller"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	User            string          `json:"user"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type UserRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// ListedOrder is an order whose user reference is resolved to the user's name.
// Its User field shadows Order.User when encoded.
type ListedOrder struct {
	Order
	User UserRef `json:"user"`
}

type OrderFilter struct {
	Seller string
	User   string
}

type ProductFilter struct {
	Seller string
}
