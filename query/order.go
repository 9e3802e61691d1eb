package query

import (
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderFilter enumerates the admin order search. Nil fields are unconstrained.
type OrderFilter struct {
	Keyword       string
	Email         string
	CustomerName  string
	PaymentMethod string
	MinPrice      *float64
	MaxPrice      *float64
	MinQty        *int
	MaxQty        *int
	IsPaid        *bool
	IsDelivered   *bool
	StartDate     *time.Time
	EndDate       *time.Time
}

func ParseOrderFilter(q url.Values) OrderFilter {
	return OrderFilter{
		Keyword:       strings.TrimSpace(q.Get("keyword")),
		Email:         strings.TrimSpace(q.Get("email")),
		CustomerName:  strings.TrimSpace(q.Get("customerName")),
		PaymentMethod: strings.TrimSpace(q.Get("paymentMethod")),
		MinPrice:      floatParam(q, "minPrice"),
		MaxPrice:      floatParam(q, "maxPrice"),
		MinQty:        intParam(q, "minQty"),
		MaxQty:        intParam(q, "maxQty"),
		IsPaid:        boolParam(q, "isPaid"),
		IsDelivered:   boolParam(q, "isDelivered"),
		StartDate:     dateParam(q, "startDate", false),
		EndDate:       dateParam(q, "endDate", true),
	}
}

// NeedsUserLookup reports whether owners must be resolved against the user
// collection before orders can be matched.
func (f OrderFilter) NeedsUserLookup() bool {
	return f.Email != "" || f.CustomerName != ""
}

// UserFilter matches users by email and name substrings.
func (f OrderFilter) UserFilter() bson.M {
	filter := bson.M{}
	if f.Email != "" {
		filter["email"] = Contains(f.Email)
	}
	if f.CustomerName != "" {
		filter["name"] = Contains(f.CustomerName)
	}
	return filter
}

// Build renders the order filter. userIDs constrains the owner and is only
// applied when NeedsUserLookup is true.
func (f OrderFilter) Build(userIDs []primitive.ObjectID) bson.M {
	filter := bson.M{}
	if f.Keyword != "" {
		filter["orderItems.name"] = Contains(f.Keyword)
	}
	if f.NeedsUserLookup() {
		if userIDs == nil {
			userIDs = []primitive.ObjectID{}
		}
		filter["user"] = bson.M{"$in": userIDs}
	}
	if f.PaymentMethod != "" {
		filter["paymentMethod"] = Contains(f.PaymentMethod)
	}
	if r := between(f.MinPrice, f.MaxPrice); r != nil {
		filter["totalPrice"] = r
	}
	if r := between(f.MinQty, f.MaxQty); r != nil {
		filter["orderItems"] = bson.M{"$elemMatch": bson.M{"qty": r}}
	}
	if f.IsPaid != nil {
		filter["isPaid"] = *f.IsPaid
	}
	if f.IsDelivered != nil {
		filter["isDelivered"] = *f.IsDelivered
	}
	if r := between(f.StartDate, f.EndDate); r != nil {
		filter["createdAt"] = r
	}
	return filter
}
