package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxReviewsPerProduct bounds the embedded review list.
const MaxReviewsPerProduct = 200

var (
	ErrAlreadyReviewed = errors.New("product already reviewed")
	ErrTooManyReviews  = errors.New("product has reached the review limit")
)

// Review is embedded in Product
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Name      string             `bson:"name" json:"name"`
	Rating    float64            `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Product represents an item in the catalog
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	User         primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Images       []string           `bson:"images" json:"images"`
	Brand        string             `bson:"brand" json:"brand"`
	Category     primitive.ObjectID `bson:"category" json:"category"`
	Description  string             `bson:"description" json:"description"`
	Reviews      []Review           `bson:"reviews" json:"reviews"`
	Rating       float64            `bson:"rating" json:"rating"`
	NumReviews   int                `bson:"numReviews" json:"numReviews"`
	Price        float64            `bson:"price" json:"price"`
	CountInStock int                `bson:"countInStock" json:"countInStock"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CatalogProduct is a catalog row with its category joined in.
type CatalogProduct struct {
	ID           primitive.ObjectID `bson:"_id" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Images       []string           `bson:"images" json:"images"`
	Brand        string             `bson:"brand" json:"brand"`
	Category     *Category          `bson:"category" json:"category"`
	Description  string             `bson:"description" json:"description"`
	Rating       float64            `bson:"rating" json:"rating"`
	NumReviews   int                `bson:"numReviews" json:"numReviews"`
	Price        float64            `bson:"price" json:"price"`
	CountInStock int                `bson:"countInStock" json:"countInStock"`
}

// AddReview appends r and recomputes NumReviews and the mean Rating.
func (p *Product) AddReview(r Review) error {
	if p.HasReviewFrom(r.User) {
		return ErrAlreadyReviewed
	}
	if len(p.Reviews) >= MaxReviewsPerProduct {
		return ErrTooManyReviews
	}
	p.Reviews = append(p.Reviews, r)
	p.NumReviews = len(p.Reviews)

	var sum float64
	for _, rev := range p.Reviews {
		sum += rev.Rating
	}
	p.Rating = sum / float64(p.NumReviews)
	return nil
}

func (p *Product) HasReviewFrom(user primitive.ObjectID) bool {
	for _, rev := range p.Reviews {
		if rev.User == user {
			return true
		}
	}
	return false
}

// DecrementStock returns stock reduced by qty, floored at zero.
func DecrementStock(stock, qty int) int {
	if qty >= stock {
		return 0
	}
	return stock - qty
}
