package controllers

import (
	"net/http"
	"time"

	"go-storefront/models"
	"go-storefront/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartController handles cart-related requests
type CartController struct {
	Collection        *mongo.Collection
	ProductCollection *mongo.Collection
}

// NewCartController creates a new CartController
func NewCartController(db *mongo.Database) *CartController {
	return &CartController{
		Collection:        db.Collection(utils.CartsCollection),
		ProductCollection: db.Collection(utils.ProductsCollection),
	}
}

// AddToCart adds a product to the user's cart, merging quantities
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var item models.CartItem
	if err := utils.DecodeJSON(r, &item); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	n, err := cc.ProductCollection.CountDocuments(ctx, bson.M{"_id": item.ProductID})
	if err != nil {
		logrus.WithError(err).Error("failed to check product")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	// Check if cart exists
	var cart models.Cart
	err = cc.Collection.FindOne(ctx, bson.M{"user_id": user.ID}).Decode(&cart)
	if err != nil && !utils.IsNotFound(err) {
		logrus.WithError(err).Error("failed to load cart")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	cart.UserID = user.ID
	cart.Merge(item)
	cart.UpdatedAt = time.Now()

	_, err = cc.Collection.UpdateOne(ctx,
		bson.M{"user_id": user.ID},
		bson.M{"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		logrus.WithError(err).Error("failed to save cart")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating cart")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, cart)
}

// RemoveFromCart removes a product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	productID, err := primitive.ObjectIDFromHex(mux.Vars(r)["product_id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var cart models.Cart
	if err := cc.Collection.FindOne(ctx, bson.M{"user_id": user.ID}).Decode(&cart); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}

	cart.Remove(productID)
	cart.UpdatedAt = time.Now()
	_, err = cc.Collection.UpdateOne(ctx, bson.M{"_id": cart.ID}, bson.M{"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt}})
	if err != nil {
		logrus.WithError(err).Error("failed to save cart")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating cart")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, cart)
}

// GetCart retrieves the user's cart. A user without a cart gets an empty one.
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cart := models.Cart{UserID: user.ID, Items: []models.CartItem{}}
	err := cc.Collection.FindOne(ctx, bson.M{"user_id": user.ID}).Decode(&cart)
	if err != nil && !utils.IsNotFound(err) {
		logrus.WithError(err).Error("failed to load cart")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	utils.RespondWithJSON(w, http.StatusOK, cart)
}
