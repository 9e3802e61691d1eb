package query

import "go.mongodb.org/mongo-driver/bson/primitive"

// MonthLabels are the fixed chart labels, January first.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthBucket is one row of MonthlyRevenuePipeline.
type MonthBucket struct {
	Month        int     `bson:"_id"`
	TotalRevenue float64 `bson:"totalRevenue"`
}

// TopSeller is one row of TopSellingPipeline.
type TopSeller struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Image     string             `bson:"image" json:"image"`
	TotalSold int                `bson:"totalSold" json:"totalSold"`
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
}

type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// MonthlyChart spreads buckets over all twelve months. Months without
// revenue are zero, and out-of-range months are dropped.
func MonthlyChart(buckets []MonthBucket) Chart {
	data := make([]float64, 12)
	for _, b := range buckets {
		if b.Month < 1 || b.Month > 12 {
			continue
		}
		data[b.Month-1] += b.TotalRevenue
	}
	return Chart{
		Labels: MonthLabels[:],
		Datasets: []Dataset{{
			Label:           "Revenue",
			Data:            data,
			BorderColor:     "#4caf50",
			BackgroundColor: "rgba(76, 175, 80, 0.2)",
		}},
	}
}
