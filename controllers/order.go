package controllers

import (
	"context"
	"net/http"
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

// OrderController handles order-related requests
type OrderController struct {
	OrderCollection   *mongo.Collection
	CartCollection    *mongo.Collection
	ProductCollection *mongo.Collection
	UserCollection    *mongo.Collection
	EmailService      *utils.EmailService
	PageSize          int
}

// NewOrderController creates a new OrderController
func NewOrderController(db *mongo.Database, emailService *utils.EmailService, pageSize int) *OrderController {
	return &OrderController{
		OrderCollection:   db.Collection(utils.OrdersCollection),
		CartCollection:    db.Collection(utils.CartsCollection),
		ProductCollection: db.Collection(utils.ProductsCollection),
		UserCollection:    db.Collection(utils.UsersCollection),
		EmailService:      emailService,
		PageSize:          pageSize,
	}
}

type orderItemRequest struct {
	Product string `json:"product"`
	ID      string `json:"_id"`
	Qty     int    `json:"qty" validate:"min=1"`
}

func (it orderItemRequest) productID() (primitive.ObjectID, error) {
	if it.Product != "" {
		return primitive.ObjectIDFromHex(it.Product)
	}
	return primitive.ObjectIDFromHex(it.ID)
}

// CreateOrder places an order. Names, images and prices come from the stored
// products, and the price breakdown is computed here rather than trusted from the client.
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		OrderItems      []orderItemRequest     `json:"orderItems" validate:"dive"`
		ShippingAddress models.ShippingAddress `json:"shippingAddress"`
		PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.OrderItems) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "No order items")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		id, err := it.productID()
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := oc.ProductCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		logrus.WithError(err).Error("failed to load order products")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(req.OrderItems))
	for i, it := range req.OrderItems {
		p, found := byID[ids[i]]
		if !found {
			utils.RespondWithError(w, http.StatusBadRequest, "Product not found: "+ids[i].Hex())
			return
		}
		var image string
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		items = append(items, models.OrderItem{
			Product: p.ID,
			Name:    p.Name,
			Qty:     it.Qty,
			Image:   image,
			Price:   p.Price,
		})
	}

	now := time.Now()
	order := models.Order{
		User:            user.ID,
		OrderItems:      items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Prices:          models.PriceBreakdown(items),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result, err := oc.OrderCollection.InsertOne(ctx, order)
	if err != nil {
		logrus.WithError(err).Error("failed to create order")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating order")
		return
	}
	order.ID = result.InsertedID.(primitive.ObjectID)

	// Checkout empties the cart.
	_, err = oc.CartCollection.UpdateOne(ctx, bson.M{"user_id": user.ID}, bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": now}})
	if err != nil {
		logrus.WithError(err).WithField("user", user.ID.Hex()).Warn("failed to clear cart after checkout")
	}

	utils.RespondWithJSON(w, http.StatusCreated, order)
}

// GetMyOrders lists the caller's orders, newest first
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := oc.OrderCollection.Find(ctx, bson.M{"user": user.ID}, opts)
	if err != nil {
		logrus.WithError(err).Error("failed to list orders")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding orders")
		return
	}
	if len(orders) == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "No orders found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, orders)
}

// TotalOrders counts all orders
func (oc *OrderController) TotalOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	total, err := oc.OrderCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		logrus.WithError(err).Error("failed to count orders")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error counting orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"totalOrders": total})
}

// GetOrderByID returns an order with its owner's name and email. Only the
// owner or an admin may read it.
func (oc *OrderController) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := oc.OrderCollection.Aggregate(ctx, query.OrderWithUserPipeline(bson.M{"_id": id}))
	if err != nil {
		logrus.WithError(err).Error("failed to load order")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching order")
		return
	}
	var orders []models.OrderWithUser
	if err := cursor.All(ctx, &orders); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding order")
		return
	}
	if len(orders) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
		return
	}

	order := orders[0]
	if !user.IsAdmin && (order.User == nil || order.User.ID != user.ID) {
		utils.RespondWithError(w, http.StatusForbidden, "Not authorized to view this order")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// PayOrder records the payment processor's confirmation on the caller's order
func (oc *OrderController) PayOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
		return
	}
	var result models.PaymentResult
	if err := utils.DecodeJSON(r, &result); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := bson.M{"_id": id}
	if !user.IsAdmin {
		filter["user"] = user.ID
	}
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"isPaid":        true,
		"paidAt":        now,
		"paymentResult": result,
		"updatedAt":     now,
	}}

	ctx, cancel := requestContext(r)
	defer cancel()

	var order models.Order
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := oc.OrderCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&order); err != nil {
		if utils.IsNotFound(err) {
			utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
			return
		}
		logrus.WithError(err).Error("failed to mark order paid")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating order")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// DeliverOrder marks an order delivered, takes its items out of stock and
// emails the owner. An order is only delivered once.
func (oc *OrderController) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	now := time.Now()
	var order models.Order
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = oc.OrderCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isDelivered": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"isDelivered": true, "deliveredAt": now, "updatedAt": now}},
		opts,
	).Decode(&order)
	if err != nil {
		if !utils.IsNotFound(err) {
			logrus.WithError(err).Error("failed to mark order delivered")
			utils.RespondWithError(w, http.StatusInternalServerError, "Error updating order")
			return
		}
		n, cerr := oc.OrderCollection.CountDocuments(ctx, bson.M{"_id": id})
		if cerr == nil && n > 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Order already delivered")
			return
		}
		utils.RespondWithError(w, http.StatusBadRequest, "Order not found")
		return
	}

	for _, item := range order.OrderItems {
		if err := oc.decrementStock(ctx, item); err != nil {
			logrus.WithError(err).WithField("product", item.Product.Hex()).Error("failed to decrement stock")
		}
	}

	var owner models.User
	if err := oc.UserCollection.FindOne(ctx, bson.M{"_id": order.User}).Decode(&owner); err != nil {
		logrus.WithError(err).WithField("order", order.ID.Hex()).Warn("order owner not found, delivery email skipped")
		utils.RespondWithJSON(w, http.StatusOK, order)
		return
	}
	if err := oc.EmailService.SendOrderDeliveredEmail(ctx, owner.Email, &order); err != nil {
		logrus.WithError(err).WithField("order", order.ID.Hex()).Error("failed to send delivery email")
		utils.RespondWithError(w, http.StatusInternalServerError, "Order delivered but the notification email failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, order)
}

// decrementStock lowers the product's stock by the ordered quantity, floored
// at zero. Each write is guarded by the stock value it was computed from.
// Missing products are skipped.
func (oc *OrderController) decrementStock(ctx context.Context, item models.OrderItem) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var product models.Product
		err := oc.ProductCollection.FindOne(ctx, bson.M{"_id": item.Product}, options.FindOne().SetProjection(bson.M{"countInStock": 1})).Decode(&product)
		if utils.IsNotFound(err) {
			logrus.WithField("product", item.Product.Hex()).Warn("product not found, stock not decremented")
			return nil
		}
		if err != nil {
			return err
		}

		next := models.DecrementStock(product.CountInStock, item.Qty)
		res, err := oc.ProductCollection.UpdateOne(ctx,
			bson.M{"_id": item.Product, "countInStock": product.CountInStock},
			bson.M{"$set": bson.M{"countInStock": next, "updatedAt": time.Now()}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	logrus.WithField("product", item.Product.Hex()).Warn("stock not decremented after concurrent updates")
	return nil
}

// GetOrders is the admin order search. Email and customer name are resolved
// to user ids first; when none match, no order query is run.
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := query.NewPage(q.Get("pageNumber"), oc.PageSize)
	f := query.ParseOrderFilter(q)

	ctx, cancel := requestContext(r)
	defer cancel()

	var userIDs []primitive.ObjectID
	if f.NeedsUserLookup() {
		cursor, err := oc.UserCollection.Find(ctx, f.UserFilter(), options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			logrus.WithError(err).Error("failed to look up order owners")
			utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching orders")
			return
		}
		var owners []struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.All(ctx, &owners); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching orders")
			return
		}
		if len(owners) == 0 {
			utils.RespondWithJSON(w, http.StatusOK, query.Listing[models.OrderWithUser]("orders", nil, page, 0))
			return
		}
		for _, o := range owners {
			userIDs = append(userIDs, o.ID)
		}
	}

	filter := f.Build(userIDs)
	count, err := oc.OrderCollection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("failed to count orders")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}

	cursor, err := oc.OrderCollection.Aggregate(ctx, query.OrderListPipeline(filter, page))
	if err != nil {
		logrus.WithError(err).Error("failed to list orders")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	var orders []models.OrderWithUser
	if err := cursor.All(ctx, &orders); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding orders")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, query.Listing("orders", orders, page, count))
}
