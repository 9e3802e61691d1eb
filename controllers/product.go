package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-storefront/models"
	"go-storefront/query"
	"go-storefront/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	topProductsLimit = 3
	topProductsTTL   = 5 * time.Minute
	similarLimit     = 5
	// casAttempts bounds the optimistic retries of guarded product updates.
	casAttempts = 3
)

// ProductController handles product-related requests
type ProductController struct {
	Collection *mongo.Collection
	Cache      utils.Cache
	PageSize   int
}

// NewProductController creates a new ProductController
func NewProductController(db *mongo.Database, cache utils.Cache, pageSize int) *ProductController {
	return &ProductController{
		Collection: db.Collection(utils.ProductsCollection),
		Cache:      cache,
		PageSize:   pageSize,
	}
}

// productRequest carries both create and update payloads. Update ignores
// zero values, so a field is only changed when a new value is supplied.
type productRequest struct {
	Name         string   `json:"name"`
	Price        float64  `json:"price" validate:"gte=0"`
	Description  string   `json:"description"`
	Images       []string `json:"images" validate:"omitempty,dive,required"`
	Brand        string   `json:"brand"`
	Category     string   `json:"category"`
	CountInStock int      `json:"countInStock" validate:"gte=0"`
}

// GetProducts lists the catalog page matching the query filters
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := query.NewPage(q.Get("pageNumber"), pc.PageSize)
	filter := query.ParseProductFilter(q).Build()

	ctx, cancel := requestContext(r)
	defer cancel()

	count, err := pc.Collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("failed to count products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}

	cursor, err := pc.Collection.Aggregate(ctx, query.CatalogPipeline(filter, page))
	if err != nil {
		logrus.WithError(err).Error("failed to list products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}
	var products []models.CatalogProduct
	if err := cursor.All(ctx, &products); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding products")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, query.Listing("products", products, page, count))
}

// GetProductByID retrieves a product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var product models.Product
	if err := pc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.Name) == "" || req.Price == 0 || req.Category == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "All required fields must be provided")
		return
	}
	category, err := primitive.ObjectIDFromHex(req.Category)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}
	if len(req.Images) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "At least one image must be provided")
		return
	}

	now := time.Now()
	product := models.Product{
		User:         admin.ID,
		Name:         strings.TrimSpace(req.Name),
		Images:       req.Images,
		Brand:        req.Brand,
		Category:     category,
		Description:  req.Description,
		Reviews:      []models.Review{},
		Price:        req.Price,
		CountInStock: req.CountInStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	result, err := pc.Collection.InsertOne(ctx, product)
	if err != nil {
		logrus.WithError(err).Error("failed to create product")
		utils.RespondWithError(w, http.StatusInternalServerError, "Product creation failed")
		return
	}
	product.ID = result.InsertedID.(primitive.ObjectID)
	utils.Invalidate(ctx, pc.Cache, utils.TopProductsKey)

	utils.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles updating an existing product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}
	var req productRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if name := strings.TrimSpace(req.Name); name != "" {
		set["name"] = name
	}
	if req.Price != 0 {
		set["price"] = req.Price
	}
	if req.Description != "" {
		set["description"] = req.Description
	}
	if len(req.Images) > 0 {
		set["images"] = req.Images
	}
	if req.Brand != "" {
		set["brand"] = req.Brand
	}
	if req.Category != "" {
		category, err := primitive.ObjectIDFromHex(req.Category)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}
		set["category"] = category
	}
	if req.CountInStock != 0 {
		set["countInStock"] = req.CountInStock
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var product models.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := pc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&product); err != nil {
		if utils.IsNotFound(err) {
			utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
			return
		}
		logrus.WithError(err).Error("failed to update product")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating product")
		return
	}
	utils.Invalidate(ctx, pc.Cache, utils.TopProductsKey)

	utils.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles deleting a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	result, err := pc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logrus.WithError(err).Error("failed to delete product")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting product")
		return
	}
	if result.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}
	utils.Invalidate(ctx, pc.Cache, utils.TopProductsKey)

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Product deleted"})
}

var errProductMissing = errors.New("product not found")

// CreateReview adds the caller's review. The write only lands if the review
// count is unchanged since the read and the caller has no review yet.
func (pc *ProductController) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
		return
	}
	var req struct {
		Rating  float64 `json:"rating" validate:"required,min=1,max=5"`
		Comment string  `json:"comment"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	review := models.Review{
		ID:        primitive.NewObjectID(),
		User:      user.ID,
		Name:      user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		added, err := pc.tryAddReview(ctx, id, review)
		switch {
		case errors.Is(err, errProductMissing):
			utils.RespondWithError(w, http.StatusNotFound, "Resource not found")
			return
		case errors.Is(err, models.ErrAlreadyReviewed):
			utils.RespondWithError(w, http.StatusBadRequest, "Product already reviewed")
			return
		case errors.Is(err, models.ErrTooManyReviews):
			utils.RespondWithError(w, http.StatusBadRequest, "Product has reached the review limit")
			return
		case err != nil:
			logrus.WithError(err).WithField("product", id.Hex()).Error("failed to add review")
			utils.RespondWithError(w, http.StatusInternalServerError, "Error adding review")
			return
		case added:
			utils.Invalidate(ctx, pc.Cache, utils.TopProductsKey)
			utils.RespondWithJSON(w, http.StatusCreated, utils.M{"message": "Review added"})
			return
		}
	}

	logrus.WithField("product", id.Hex()).Warn("review not added after concurrent updates")
	utils.RespondWithError(w, http.StatusConflict, "Product was updated concurrently, please retry")
}

// tryAddReview reports false when a concurrent writer changed the product first.
func (pc *ProductController) tryAddReview(ctx context.Context, id primitive.ObjectID, review models.Review) (bool, error) {
	var product models.Product
	if err := pc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		if utils.IsNotFound(err) {
			return false, errProductMissing
		}
		return false, err
	}

	prev := product.NumReviews
	if err := product.AddReview(review); err != nil {
		return false, err
	}

	filter := bson.M{
		"_id":          id,
		"numReviews":   prev,
		"reviews.user": bson.M{"$ne": review.User},
	}
	update := bson.M{
		"$push": bson.M{"reviews": review},
		"$set": bson.M{
			"numReviews": product.NumReviews,
			"rating":     product.Rating,
			"updatedAt":  time.Now(),
		},
	}
	res, err := pc.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// GetTopProducts returns the best rated products
func (pc *ProductController) GetTopProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var products []models.Product
	if err := pc.Cache.Get(ctx, utils.TopProductsKey, &products); err == nil {
		utils.RespondWithJSON(w, http.StatusOK, products)
		return
	}

	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}}).SetLimit(topProductsLimit)
	cursor, err := pc.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		logrus.WithError(err).Error("failed to load top products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}
	products = []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding products")
		return
	}

	if err := pc.Cache.Set(ctx, utils.TopProductsKey, products, topProductsTTL); err != nil {
		logrus.WithError(err).Warn("failed to cache top products")
	}
	utils.RespondWithJSON(w, http.StatusOK, products)
}

// SimilarProducts returns products sharing the category or brand of {id}
func (pc *ProductController) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var product models.Product
	if err := pc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	filter := bson.M{
		"_id": bson.M{"$ne": id},
		"$or": bson.A{
			bson.M{"category": product.Category},
			bson.M{"brand": product.Brand},
		},
	}
	if price := query.PriceRange(r.URL.Query()); price != nil {
		filter["price"] = price
	}

	opts := options.Find().
		SetLimit(similarLimit).
		SetProjection(bson.M{"name": 1, "price": 1, "category": 1, "brand": 1, "images": 1})
	cursor, err := pc.Collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("failed to load similar products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}
	var similar []models.Product
	if err := cursor.All(ctx, &similar); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding products")
		return
	}
	if len(similar) == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "No similar products found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, similar)
}

// TotalProducts counts the catalog
func (pc *ProductController) TotalProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	total, err := pc.Collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		logrus.WithError(err).Error("failed to count products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error counting products")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"totalProducts": total})
}

// CheckStock lists products at or below ?stock, or sold out products when stock is absent
func (pc *ProductController) CheckStock(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{"countInStock": 0}
	if stock, err := strconv.Atoi(r.URL.Query().Get("stock")); err == nil && stock != 0 {
		filter = bson.M{"countInStock": bson.M{"$lte": stock}}
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := pc.Collection.Aggregate(ctx, query.WithCategory(filter))
	if err != nil {
		logrus.WithError(err).Error("failed to check stock")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}
	products := []models.CatalogProduct{}
	if err := cursor.All(ctx, &products); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding products")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, products)
}
