// Package scraper defines where raw listings come from. Implementations live
// in subpackages: immodata filters a static export, wggesucht scrapes live
// result pages.
package scraper

import (
	"context"

	"rent-radar/models"
)

// Source produces the raw listings table.
type Source interface {
	Fetch(ctx context.Context) ([]*models.RawListing, error)
}
