package controllers

import (
	"net/http"
	"time"

	"go-storefront/query"
	"go-storefront/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RevenueController serves the admin dashboard figures
type RevenueController struct {
	OrderCollection *mongo.Collection
	VisitCollection *mongo.Collection
	Now             func() time.Time
}

func NewRevenueController(db *mongo.Database) *RevenueController {
	return &RevenueController{
		OrderCollection: db.Collection(utils.OrdersCollection),
		VisitCollection: db.Collection(utils.VisitsCollection),
		Now:             time.Now,
	}
}

// Revenue sums totalPrice over paid orders
func (rc *RevenueController) Revenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := rc.OrderCollection.Aggregate(ctx, query.TotalRevenuePipeline())
	if err != nil {
		logrus.WithError(err).Error("failed to aggregate revenue")
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	var rows []struct {
		TotalRevenue float64 `bson:"totalRevenue"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	var total float64
	if len(rows) > 0 {
		total = rows[0].TotalRevenue
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"totalRevenue": total})
}

// MonthlyRevenue returns paid revenue per calendar month as chart data
func (rc *RevenueController) MonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := rc.OrderCollection.Aggregate(ctx, query.MonthlyRevenuePipeline())
	if err != nil {
		logrus.WithError(err).Error("failed to aggregate monthly revenue")
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	var buckets []query.MonthBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, query.MonthlyChart(buckets))
}

// TopSelling ranks products by quantity sold in paid orders
func (rc *RevenueController) TopSelling(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := rc.OrderCollection.Aggregate(ctx, query.TopSellingPipeline(query.TopSellingLimit))
	if err != nil {
		logrus.WithError(err).Error("failed to rank top sellers")
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	sellers := []query.TopSeller{}
	if err := cursor.All(ctx, &sellers); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"topSellingProducts": sellers})
}

// MonthlyVisits counts visits recorded in the current calendar month
func (rc *RevenueController) MonthlyVisits(w http.ResponseWriter, r *http.Request) {
	now := rc.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	ctx, cancel := requestContext(r)
	defer cancel()

	total, err := rc.VisitCollection.CountDocuments(ctx, bson.M{"timestamp": bson.M{"$gte": start, "$lt": end}})
	if err != nil {
		logrus.WithError(err).Error("failed to count visits")
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"totalVisits": total})
}
