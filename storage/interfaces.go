package storage

import "rent-radar/models"

// ListingStore is the interface any database backend for cleaned listings
// and predictions must satisfy.
type ListingStore interface {
	WriteSplit(split *models.Split) error
	WritePredictions(preds []*models.Prediction) error
	FetchListings() ([]*models.Listing, error)
	Close() error
}
