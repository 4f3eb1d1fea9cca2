package models

import "time"

// RawListing holds unprocessed listing data straight from a source.
// This is written to CSV before any cleaning or transformation.
type RawListing struct {
	ID      string
	City    string
	Title   string
	RentRaw string
	SizeRaw string
}

// Listing is a cleaned record: numeric rent and size plus the normalized
// size used as the model feature.
type Listing struct {
	ID       string
	City     string
	Title    string
	RentRaw  string
	SizeRaw  string
	Rent     float64
	Size     float64
	SizeNorm float64
}

// RentPerSqm returns rent divided by size, or 0 for a zero size.
func (l *Listing) RentPerSqm() float64 {
	if l.Size == 0 {
		return 0
	}
	return l.Rent / l.Size
}

// Split is the disjoint train/test partition of a cleaned set together with
// the single activation sample drawn from the test side.
type Split struct {
	Train      []*Listing
	Test       []*Listing
	Activation *Listing
}

// SizeScaler maps a raw size in square metres onto the [0,1] range seen
// during cleaning.
type SizeScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Transform normalizes a raw size. A degenerate scaler maps everything to 0.
func (s SizeScaler) Transform(size float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (size - s.Min) / (s.Max - s.Min)
}

// Prediction is the output of applying both models to one listing.
type Prediction struct {
	RunID   string
	ID      string
	City    string
	SizeSqm float64
	ANNRent float64
	OLSRent float64
}

// ModelMeta describes a persisted model artifact.
type ModelMeta struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	TrainedAt time.Time `json:"trained_at"`
	TrainRows int       `json:"train_rows"`
}

// Evaluation holds the test-set error metrics of a trained model.
type Evaluation struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// InsightReport holds the computed analytics over the cleaned dataset.
type InsightReport struct {
	TotalListings     int
	AverageRent       float64
	MinRent           float64
	MaxRent           float64
	AverageSize       float64
	AverageRentPerSqm float64
	MostExpensive     *Listing
	CheapestPerSqm    []*Listing
	ListingsByCity    map[string]int
}
