package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	FreeShippingThreshold = 100.0
	FlatShippingPrice     = 10.0
	TaxRate               = 0.15
)

// OrderItem is a product snapshot taken at checkout
type OrderItem struct {
	Product primitive.ObjectID `bson:"product" json:"product"`
	Name    string             `bson:"name" json:"name"`
	Qty     int                `bson:"qty" json:"qty"`
	Image   string             `bson:"image" json:"image"`
	Price   float64            `bson:"price" json:"price"`
}

// ShippingAddress represents the delivery address of an order
type ShippingAddress struct {
	Address    string `bson:"address" json:"address" validate:"required"`
	City       string `bson:"city" json:"city" validate:"required"`
	PostalCode string `bson:"postalCode" json:"postalCode" validate:"required"`
	Country    string `bson:"country" json:"country" validate:"required"`
}

// Order represents a user's order
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	OrderItems      []OrderItem        `bson:"orderItems" json:"orderItems"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentResult   *PaymentResult     `bson:"paymentResult,omitempty" json:"paymentResult,omitempty"`
	Prices          `bson:",inline"`
	IsPaid          bool       `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsDelivered     bool       `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt     *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// OrderWithUser is an order with its owner's name and email joined in.
type OrderWithUser struct {
	ID              primitive.ObjectID `bson:"_id" json:"_id"`
	User            *UserSummary       `bson:"user" json:"user"`
	OrderItems      []OrderItem        `bson:"orderItems" json:"orderItems"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentResult   *PaymentResult     `bson:"paymentResult,omitempty" json:"paymentResult,omitempty"`
	Prices          `bson:",inline"`
	IsPaid          bool       `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsDelivered     bool       `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt     *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
}

// Prices is the computed price breakdown of an order
type Prices struct {
	ItemsPrice    float64 `bson:"itemsPrice" json:"itemsPrice"`
	ShippingPrice float64 `bson:"shippingPrice" json:"shippingPrice"`
	TaxPrice      float64 `bson:"taxPrice" json:"taxPrice"`
	TotalPrice    float64 `bson:"totalPrice" json:"totalPrice"`
}

// PriceBreakdown computes the prices for items. Shipping is free above
// FreeShippingThreshold.
func PriceBreakdown(items []OrderItem) Prices {
	var itemsPrice float64
	for _, it := range items {
		itemsPrice += it.Price * float64(it.Qty)
	}
	itemsPrice = roundCents(itemsPrice)

	shipping := FlatShippingPrice
	if itemsPrice > FreeShippingThreshold {
		shipping = 0
	}
	tax := roundCents(itemsPrice * TaxRate)

	return Prices{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    roundCents(itemsPrice + shipping + tax),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
