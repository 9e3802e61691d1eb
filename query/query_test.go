package query

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPagePages(t *testing.T) {
	p := NewPage("2", 8)
	assert.Equal(t, int64(8), p.Skip())
	assert.Equal(t, int64(8), p.Limit())

	for count, want := range map[int64]int{0: 0, 1: 1, 8: 1, 9: 2, 17: 3} {
		assert.Equal(t, want, p.Pages(count), "count=%d", count)
	}
}

func TestNewPageDefaults(t *testing.T) {
	assert.Equal(t, 1, NewPage("", 10).Number)
	assert.Equal(t, 1, NewPage("abc", 10).Number)
	assert.Equal(t, 1, NewPage("-4", 10).Number)
	assert.Equal(t, 1, NewPage("3", 0).Size)
}

func TestListingNeverReturnsNilItems(t *testing.T) {
	body := Listing[int]("products", nil, NewPage("1", 10), 0)
	assert.Equal(t, []int{}, body["products"])
	assert.Equal(t, 1, body["page"])
	assert.Equal(t, 0, body["pages"])
}

func TestProductFilterIgnoresInvalidCategory(t *testing.T) {
	f := ParseProductFilter(url.Values{"category": {"not-an-id"}, "keyword": {"phone"}})
	assert.Nil(t, f.Category)

	filter := f.Build()
	assert.NotContains(t, filter, "category")
	assert.Equal(t, bson.M{"$regex": "phone", "$options": "i"}, filter["name"])
}

func TestProductFilterMissingNumbersAreUnconstrained(t *testing.T) {
	f := ParseProductFilter(url.Values{"minPrice": {""}, "minRating": {"x"}})
	assert.Equal(t, bson.M{}, f.Build())
}

func TestProductFilterAllFields(t *testing.T) {
	cat := primitive.NewObjectID()
	q := url.Values{
		"category":   {cat.Hex()},
		"minPrice":   {"10"},
		"maxPrice":   {"99.5"},
		"minRating":  {"4"},
		"minReviews": {"3"},
	}
	filter := ParseProductFilter(q).Build()

	assert.Equal(t, cat, filter["category"])
	assert.Equal(t, bson.M{"$gte": 10.0, "$lte": 99.5}, filter["price"])
	assert.Equal(t, bson.M{"$gte": 4.0}, filter["rating"])
	assert.Equal(t, bson.M{"$gte": 3}, filter["numReviews"])
}

func TestProductFilterSingleBound(t *testing.T) {
	filter := ParseProductFilter(url.Values{"maxPrice": {"20"}}).Build()
	assert.Equal(t, bson.M{"$lte": 20.0}, filter["price"])
}

func TestKeywordIsQuoted(t *testing.T) {
	filter := KeywordFilter("a.b*", "name")
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\.b\*`, "$options": "i"}}, filter)
}

func TestKeywordFilterAcrossFields(t *testing.T) {
	filter := KeywordFilter("ann", "name", "email")
	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 2)
	assert.Equal(t, bson.M{}, KeywordFilter("  ", "name"))
}

func TestOrderFilterPriceRange(t *testing.T) {
	f := ParseOrderFilter(url.Values{"minPrice": {"50"}, "maxPrice": {"100"}})
	assert.False(t, f.NeedsUserLookup())

	filter := f.Build(nil)
	assert.Equal(t, bson.M{"totalPrice": bson.M{"$gte": 50.0, "$lte": 100.0}}, filter)
}

func TestOrderFilterUserLookup(t *testing.T) {
	f := ParseOrderFilter(url.Values{"email": {"bob@"}, "customerName": {"Bob"}})
	require.True(t, f.NeedsUserLookup())
	assert.Equal(t, bson.M{
		"email": bson.M{"$regex": "bob@", "$options": "i"},
		"name":  bson.M{"$regex": "Bob", "$options": "i"},
	}, f.UserFilter())

	ids := []primitive.ObjectID{primitive.NewObjectID()}
	assert.Equal(t, bson.M{"$in": ids}, f.Build(ids)["user"])
	assert.Equal(t, bson.M{"$in": []primitive.ObjectID{}}, f.Build(nil)["user"])
}

func TestOrderFilterFlagsQtyAndDates(t *testing.T) {
	q := url.Values{
		"keyword":       {"lamp"},
		"paymentMethod": {"pay"},
		"minQty":        {"2"},
		"isPaid":        {"true"},
		"isDelivered":   {"false"},
		"startDate":     {"2024-01-01"},
		"endDate":       {"2024-01-31"},
	}
	filter := ParseOrderFilter(q).Build(nil)

	assert.Equal(t, bson.M{"$regex": "lamp", "$options": "i"}, filter["orderItems.name"])
	assert.Equal(t, bson.M{"$regex": "pay", "$options": "i"}, filter["paymentMethod"])
	assert.Equal(t, bson.M{"$elemMatch": bson.M{"qty": bson.M{"$gte": 2}}}, filter["orderItems"])
	assert.Equal(t, true, filter["isPaid"])
	assert.Equal(t, false, filter["isDelivered"])
	assert.NotContains(t, filter, "user")

	created, ok := filter["createdAt"].(bson.M)
	require.True(t, ok)
	start := created["$gte"].(time.Time)
	end := created["$lte"].(time.Time)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), end)
}

func TestMonthlyChartZeroOrders(t *testing.T) {
	chart := MonthlyChart(nil)
	require.Len(t, chart.Labels, 12)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, make([]float64, 12), chart.Datasets[0].Data)
}

func TestMonthlyChartPlacesBuckets(t *testing.T) {
	chart := MonthlyChart([]MonthBucket{{Month: 1, TotalRevenue: 10}, {Month: 12, TotalRevenue: 5.5}, {Month: 13, TotalRevenue: 99}})
	data := chart.Datasets[0].Data
	assert.Equal(t, 10.0, data[0])
	assert.Equal(t, 5.5, data[11])
	assert.Equal(t, "Dec", chart.Labels[11])
}

func TestRevenuePipelinesMatchPaidOnly(t *testing.T) {
	for name, p := range map[string][]bson.D{
		"total":   TotalRevenuePipeline(),
		"monthly": MonthlyRevenuePipeline(),
		"top":     TopSellingPipeline(TopSellingLimit),
	} {
		require.NotEmpty(t, p, name)
		assert.Equal(t, "$match", p[0][0].Key, name)
		assert.Equal(t, bson.M{"isPaid": true}, p[0][0].Value, name)
	}
}

func TestTopSellingPipelineLimit(t *testing.T) {
	p := TopSellingPipeline(10)
	var limit any
	for _, stage := range p {
		if stage[0].Key == "$limit" {
			limit = stage[0].Value
		}
	}
	assert.Equal(t, 10, limit)
}

func TestOrderListPipelineSortsNewestFirst(t *testing.T) {
	p := OrderListPipeline(bson.M{}, NewPage("1", 10))
	assert.Equal(t, "$sort", p[1][0].Key)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, p[1][0].Value)
}

func TestNewPageCapsHugeNumbers(t *testing.T) {
	p := NewPage("9223372036854775807", 10)
	assert.Positive(t, p.Skip())
	assert.LessOrEqual(t, p.Skip(), int64(math.MaxInt32))
	assert.Greater(t, p.Number, p.Pages(1000))

	assert.LessOrEqual(t, NewPage("99999999999", 1).Skip(), int64(math.MaxInt32))
	assert.Equal(t, int64(20), NewPage("3", 10).Skip())
}

func TestCatalogPipelineSortsBeforeSkip(t *testing.T) {
	p := CatalogPipeline(bson.M{}, NewPage("2", 8))
	keys := make([]string, 0, len(p))
	for _, stage := range p {
		keys = append(keys, stage[0].Key)
	}
	require.GreaterOrEqual(t, len(keys), 4)
	assert.Equal(t, []string{"$match", "$sort", "$skip", "$limit"}, keys[:4])
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, p[1][0].Value)
}

func TestOrderWithUserPipelineHasNoPaging(t *testing.T) {
	id := primitive.NewObjectID()
	p := OrderWithUserPipeline(bson.M{"_id": id})
	assert.Equal(t, bson.M{"_id": id}, p[0][0].Value)
	for _, stage := range p {
		assert.NotEqual(t, "$skip", stage[0].Key)
		assert.NotEqual(t, "$limit", stage[0].Key)
	}
	assert.Equal(t, "$lookup", p[1][0].Key)
}
