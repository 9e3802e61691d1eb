package controllers

import (
	"net/http"
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

// allCategoriesTTL bounds how long the unpaginated category list may be served from cache.
const allCategoriesTTL = 10 * time.Minute

// CategoryController handles category requests. Errors use the {"error": ...} shape.
type CategoryController struct {
	Collection *mongo.Collection
	Cache      utils.Cache
	PageSize   int
}

func NewCategoryController(db *mongo.Database, cache utils.Cache, pageSize int) *CategoryController {
	return &CategoryController{
		Collection: db.Collection(utils.CategoriesCollection),
		Cache:      cache,
		PageSize:   pageSize,
	}
}

type categoryRequest struct {
	Name string `json:"category_name" validate:"required"`
}

// CreateCategory inserts a category with a unique name
func (cc *CategoryController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErrorField(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)

	ctx, cancel := requestContext(r)
	defer cancel()

	n, err := cc.Collection.CountDocuments(ctx, bson.M{"category_name": name})
	if err != nil {
		logrus.WithError(err).Error("failed to check category name")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if n > 0 {
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Category must be unique")
		return
	}

	now := time.Now()
	category := models.Category{Name: name, CreatedAt: now, UpdatedAt: now}
	res, err := cc.Collection.InsertOne(ctx, category)
	if err != nil {
		if utils.IsDuplicateKeyError(err) {
			utils.RespondWithErrorField(w, http.StatusBadRequest, "Category must be unique")
			return
		}
		logrus.WithError(err).Error("failed to create category")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	category.ID = res.InsertedID.(primitive.ObjectID)
	utils.Invalidate(ctx, cc.Cache, utils.AllCategoriesKey)

	utils.RespondWithJSON(w, http.StatusOK, category)
}

// ListCategories pages through categories matching keyword
func (cc *CategoryController) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := query.NewPage(q.Get("pageNumber"), cc.PageSize)
	filter := query.KeywordFilter(q.Get("keyword"), "category_name")

	ctx, cancel := requestContext(r)
	defer cancel()

	count, err := cc.Collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("failed to count categories")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	cursor, err := cc.Collection.Find(ctx, filter, options.Find().SetSkip(page.Skip()).SetLimit(page.Limit()))
	if err != nil {
		logrus.WithError(err).Error("failed to list categories")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	var categories []models.Category
	if err := cursor.All(ctx, &categories); err != nil {
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, query.Listing("categories", categories, page, count))
}

// AllCategories returns every category, cached
func (cc *CategoryController) AllCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var categories []models.Category
	if err := cc.Cache.Get(ctx, utils.AllCategoriesKey, &categories); err == nil {
		utils.RespondWithJSON(w, http.StatusOK, categories)
		return
	}

	cursor, err := cc.Collection.Find(ctx, bson.M{})
	if err != nil {
		logrus.WithError(err).Error("failed to list categories")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	categories = []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := cc.Cache.Set(ctx, utils.AllCategoriesKey, categories, allCategoriesTTL); err != nil {
		logrus.WithError(err).Warn("failed to cache categories")
	}
	utils.RespondWithJSON(w, http.StatusOK, categories)
}

// GetCategory returns one category
func (cc *CategoryController) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Something went wrong")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var category models.Category
	if err := cc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&category); err != nil {
		if !utils.IsNotFound(err) {
			logrus.WithError(err).Error("failed to load category")
			utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Something went wrong")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, category)
}

// UpdateCategory renames a category
func (cc *CategoryController) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Category not found")
		return
	}
	var req categoryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErrorField(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var category models.Category
	update := bson.M{"$set": bson.M{"category_name": strings.TrimSpace(req.Name), "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := cc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&category); err != nil {
		switch {
		case utils.IsNotFound(err):
			utils.RespondWithErrorField(w, http.StatusBadRequest, "Category not found")
		case utils.IsDuplicateKeyError(err):
			utils.RespondWithErrorField(w, http.StatusBadRequest, "Category must be unique")
		default:
			logrus.WithError(err).Error("failed to update category")
			utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.Invalidate(ctx, cc.Cache, utils.AllCategoriesKey)

	utils.RespondWithJSON(w, http.StatusOK, category)
}

// DeleteCategory removes a category. Products keep their dangling reference.
func (cc *CategoryController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithErrorField(w, http.StatusNotFound, "Something went wrong")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := cc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logrus.WithError(err).Error("failed to delete category")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithErrorField(w, http.StatusNotFound, "Something went wrong")
		return
	}
	utils.Invalidate(ctx, cc.Cache, utils.AllCategoriesKey)

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Category deleted successfully"})
}
