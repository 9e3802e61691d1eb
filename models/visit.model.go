package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Visit is one page load, counted for monthly traffic.
type Visit struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Page      string             `bson:"page" json:"page"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
