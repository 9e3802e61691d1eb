package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TopSellingLimit is the size of the best-seller ranking.
const TopSellingLimit = 10

var paidOnly = bson.D{{Key: "$match", Value: bson.M{"isPaid": true}}}

var joinCategory = []bson.D{
	{{Key: "$lookup", Value: bson.M{
		"from":         "categories",
		"localField":   "category",
		"foreignField": "_id",
		"as":           "category",
	}}},
	{{Key: "$unwind", Value: bson.M{"path": "$category", "preserveNullAndEmptyArrays": true}}},
}

// CatalogPipeline pages through products matching filter in insertion order
// and joins each product's category.
func CatalogPipeline(filter bson.M, page Page) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$skip", Value: page.Skip()}},
		{{Key: "$limit", Value: page.Limit()}},
	}
	return append(p, joinCategory...)
}

// WithCategory returns every product matching filter with its category joined.
func WithCategory(filter bson.M) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	return append(p, joinCategory...)
}

var joinOwner = []bson.D{
	{{Key: "$lookup", Value: bson.M{
		"from":         "users",
		"localField":   "user",
		"foreignField": "_id",
		"as":           "user",
	}}},
	{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
	{{Key: "$project", Value: bson.M{
		"user.password":           0,
		"user.verificationCode":   0,
		"user.resetPasswordToken": 0,
	}}},
}

// OrderListPipeline pages through orders newest first and joins the owner's
// name and email.
func OrderListPipeline(filter bson.M, page Page) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: page.Skip()}},
		{{Key: "$limit", Value: page.Limit()}},
	}
	return append(p, joinOwner...)
}

// OrderWithUserPipeline matches orders by filter and joins the owner.
func OrderWithUserPipeline(filter bson.M) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	return append(p, joinOwner...)
}

// TotalRevenuePipeline sums totalPrice over paid orders.
func TotalRevenuePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		paidOnly,
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"totalRevenue": bson.M{"$sum": "$totalPrice"},
		}}},
	}
}

// MonthlyRevenuePipeline buckets paid revenue by calendar month (1-12).
// Years are not separated.
func MonthlyRevenuePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		paidOnly,
		{{Key: "$group", Value: bson.M{
			"_id":          bson.M{"$month": "$createdAt"},
			"totalRevenue": bson.M{"$sum": "$totalPrice"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// TopSellingPipeline ranks products by quantity sold across paid orders.
func TopSellingPipeline(limit int) mongo.Pipeline {
	return mongo.Pipeline{
		paidOnly,
		{{Key: "$unwind", Value: "$orderItems"}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$orderItems.product",
			"totalSold": bson.M{"$sum": "$orderItems.qty"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalSold", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "products",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "productDetails",
		}}},
		{{Key: "$unwind", Value: "$productDetails"}},
		{{Key: "$project", Value: bson.M{
			"productId": "$_id",
			"name":      "$productDetails.name",
			"price":     "$productDetails.price",
			"image":     bson.M{"$arrayElemAt": bson.A{"$productDetails.images", 0}},
			"totalSold": 1,
		}}},
	}
}
