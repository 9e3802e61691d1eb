package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVerificationCodeLifecycle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	u.SetVerificationCode("123456", now)

	assert.ErrorIs(t, u.CheckVerificationCode("654321", now), ErrCodeMismatch)
	assert.NoError(t, u.CheckVerificationCode("123456", now.Add(9*time.Minute)))
	assert.ErrorIs(t, u.CheckVerificationCode("123456", now.Add(11*time.Minute)), ErrCodeExpired)

	u.MarkVerified()
	assert.True(t, u.IsVerified)
	assert.Nil(t, u.VerificationCode)
	assert.Nil(t, u.VerificationCodeExpires)
}

func TestCheckVerificationCodeWithoutCode(t *testing.T) {
	u := &User{}
	assert.ErrorIs(t, u.CheckVerificationCode("", time.Now()), ErrCodeMismatch)
}

func TestResetToken(t *testing.T) {
	now := time.Now()
	u := &User{}
	u.SetResetToken("tok", now)

	assert.True(t, u.ResetTokenValid("tok", now.Add(14*time.Minute)))
	assert.False(t, u.ResetTokenValid("other", now))
	assert.False(t, u.ResetTokenValid("tok", now.Add(16*time.Minute)))

	u.ClearResetToken()
	assert.False(t, u.ResetTokenValid("tok", now))
}

func TestAddReviewComputesMean(t *testing.T) {
	p := &Product{}
	ratings := []float64{5, 4, 2, 3}
	for _, r := range ratings {
		require.NoError(t, p.AddReview(Review{User: primitive.NewObjectID(), Rating: r}))
	}

	assert.Equal(t, 4, p.NumReviews)
	assert.InDelta(t, 3.5, p.Rating, 1e-9)
}

func TestAddReviewRejectsSecondReviewFromSameUser(t *testing.T) {
	p := &Product{}
	author := primitive.NewObjectID()
	require.NoError(t, p.AddReview(Review{User: author, Rating: 5}))

	err := p.AddReview(Review{User: author, Rating: 1})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 1, p.NumReviews)
	assert.Equal(t, 5.0, p.Rating)
}

func TestAddReviewCap(t *testing.T) {
	p := &Product{}
	for i := 0; i < MaxReviewsPerProduct; i++ {
		require.NoError(t, p.AddReview(Review{User: primitive.NewObjectID(), Rating: 3}))
	}
	assert.ErrorIs(t, p.AddReview(Review{User: primitive.NewObjectID(), Rating: 3}), ErrTooManyReviews)
}

func TestDecrementStock(t *testing.T) {
	cases := []struct{ stock, qty, want int }{
		{10, 3, 7},
		{3, 3, 0},
		{2, 5, 0},
		{0, 1, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DecrementStock(c.stock, c.qty), "stock=%d qty=%d", c.stock, c.qty)
	}
}

func TestPriceBreakdown(t *testing.T) {
	small := PriceBreakdown([]OrderItem{{Price: 20, Qty: 2}})
	assert.Equal(t, 40.0, small.ItemsPrice)
	assert.Equal(t, FlatShippingPrice, small.ShippingPrice)
	assert.Equal(t, 6.0, small.TaxPrice)
	assert.Equal(t, 56.0, small.TotalPrice)

	large := PriceBreakdown([]OrderItem{{Price: 33.33, Qty: 3}, {Price: 10, Qty: 1}})
	assert.Equal(t, 109.99, large.ItemsPrice)
	assert.Equal(t, 0.0, large.ShippingPrice)
	assert.Equal(t, 16.5, large.TaxPrice)
	assert.Equal(t, 126.49, large.TotalPrice)
}

func TestCartMergeAndRemove(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	c := &Cart{}
	c.Merge(CartItem{ProductID: a, Quantity: 1})
	c.Merge(CartItem{ProductID: b, Quantity: 2})
	c.Merge(CartItem{ProductID: a, Quantity: 3})

	require.Len(t, c.Items, 2)
	assert.Equal(t, 4, c.Items[0].Quantity)

	c.Remove(a)
	require.Len(t, c.Items, 1)
	assert.Equal(t, b, c.Items[0].ProductID)
}

func TestShippingThresholdIsExclusive(t *testing.T) {
	atThreshold := PriceBreakdown([]OrderItem{{Price: FreeShippingThreshold, Qty: 1}})
	assert.Equal(t, FlatShippingPrice, atThreshold.ShippingPrice)

	above := PriceBreakdown([]OrderItem{{Price: 100.01, Qty: 1}})
	assert.Equal(t, 0.0, above.ShippingPrice)

	// 11.00 would ship free under the frontend preview's "> 10" rule.
	small := PriceBreakdown([]OrderItem{{Price: 11, Qty: 1}})
	assert.Equal(t, FlatShippingPrice, small.ShippingPrice)
}
