package middleware

import (
	"context"
	"net/http"
	"time"

	"go-storefront/models"
	"go-storefront/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// VisitTracker records a Visit row for every successful request it wraps.
type VisitTracker struct {
	Visits *mongo.Collection
}

func NewVisitTracker(db *mongo.Database) *VisitTracker {
	return &VisitTracker{Visits: db.Collection(utils.VisitsCollection)}
}

// Track runs after next; failures to record are logged and never reach the client.
func (vt *VisitTracker) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= http.StatusBadRequest {
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		visit := models.Visit{Page: r.URL.Path, Timestamp: time.Now()}
		if _, err := vt.Visits.InsertOne(ctx, visit); err != nil {
			logrus.WithError(err).WithField("page", visit.Page).Error("Error logging visit")
			return
		}
		logrus.WithField("page", visit.Page).Debug("Visit logged")
	})
}
