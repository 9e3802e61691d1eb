package query

import (
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductFilter enumerates the catalog filters. Nil fields are unconstrained.
type ProductFilter struct {
	Keyword    string
	Category   *primitive.ObjectID
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	MinReviews *int
}

// ParseProductFilter reads the catalog query string. A category that is not
// a valid ObjectID is ignored.
func ParseProductFilter(q url.Values) ProductFilter {
	f := ProductFilter{
		Keyword:    strings.TrimSpace(q.Get("keyword")),
		MinPrice:   floatParam(q, "minPrice"),
		MaxPrice:   floatParam(q, "maxPrice"),
		MinRating:  floatParam(q, "minRating"),
		MinReviews: intParam(q, "minReviews"),
	}
	if id, err := primitive.ObjectIDFromHex(strings.TrimSpace(q.Get("category"))); err == nil {
		f.Category = &id
	}
	return f
}

func (f ProductFilter) Build() bson.M {
	filter := bson.M{}
	if f.Keyword != "" {
		filter["name"] = Contains(f.Keyword)
	}
	if f.Category != nil {
		filter["category"] = *f.Category
	}
	if r := between(f.MinPrice, f.MaxPrice); r != nil {
		filter["price"] = r
	}
	if f.MinRating != nil {
		filter["rating"] = bson.M{"$gte": *f.MinRating}
	}
	if f.MinReviews != nil {
		filter["numReviews"] = bson.M{"$gte": *f.MinReviews}
	}
	return filter
}

// KeywordFilter matches keyword against any of fields, or everything when
// keyword is empty.
func KeywordFilter(keyword string, fields ...string) bson.M {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return bson.M{}
	}
	if len(fields) == 1 {
		return bson.M{fields[0]: Contains(keyword)}
	}
	or := make(bson.A, 0, len(fields))
	for _, field := range fields {
		or = append(or, bson.M{field: Contains(keyword)})
	}
	return bson.M{"$or": or}
}

// PriceRange reads optional minPrice and maxPrice into a price constraint, or
// nil when neither is usable.
func PriceRange(q url.Values) bson.M {
	return between(floatParam(q, "minPrice"), floatParam(q, "maxPrice"))
}
