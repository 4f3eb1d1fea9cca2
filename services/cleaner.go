package services

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"rent-radar/models"
	"rent-radar/utils"
)

// ErrNoData is returned when nothing survives parsing and outlier filtering.
var ErrNoData = errors.New("no data left after filtering")

// Bounds are the exclusive outlier limits applied to rent and size.
type Bounds struct {
	RentMin float64
	RentMax float64
	SizeMin float64
	SizeMax float64
}

// DefaultBounds keeps realistic student rooms.
var DefaultBounds = Bounds{RentMin: 100, RentMax: 2000, SizeMin: 8, SizeMax: 80}

// Cleaner transforms RawListings into numeric, filtered, normalized Listings.
type Cleaner struct {
	logger *utils.Logger
	bounds Bounds
}

// NewCleaner creates a Cleaner with the given logger and outlier bounds.
func NewCleaner(logger *utils.Logger, bounds Bounds) *Cleaner {
	return &Cleaner{logger: logger, bounds: bounds}
}

// Clean parses, filters and normalizes raw listings. The returned scaler holds
// the size range used for size_norm.
func (c *Cleaner) Clean(raw []*models.RawListing) ([]*models.Listing, models.SizeScaler, error) {
	parsed := make([]*models.Listing, 0, len(raw))
	for _, r := range raw {
		rent, ok := parseRent(r.RentRaw)
		if !ok {
			c.logger.Debug("[cleaner] Unparseable rent %q for listing %s", r.RentRaw, r.ID)
			continue
		}
		size, ok := parseSize(r.SizeRaw)
		if !ok {
			c.logger.Debug("[cleaner] Unparseable size %q for listing %s", r.SizeRaw, r.ID)
			continue
		}
		parsed = append(parsed, &models.Listing{
			ID:      strings.TrimSpace(r.ID),
			City:    normaliseText(r.City),
			Title:   normaliseText(r.Title),
			RentRaw: r.RentRaw,
			SizeRaw: r.SizeRaw,
			Rent:    rent,
			Size:    size,
		})
	}
	if dropped := len(raw) - len(parsed); dropped > 0 {
		c.logger.Info("[cleaner] Dropped %d rows that failed numeric conversion", dropped)
	}

	result := make([]*models.Listing, 0, len(parsed))
	for _, l := range parsed {
		if c.inBounds(l) {
			result = append(result, l)
		}
	}
	if outliers := len(parsed) - len(result); outliers > 0 {
		c.logger.Info("[cleaner] Removed %d outliers (too expensive/big/small)", outliers)
	}

	if len(result) == 0 {
		return nil, models.SizeScaler{}, ErrNoData
	}

	scaler := fitScaler(result)
	if scaler.Min == scaler.Max {
		c.logger.Warn("[cleaner] All sizes equal %.2f, size_norm set to 0", scaler.Min)
	}
	for _, l := range result {
		l.SizeNorm = scaler.Transform(l.Size)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (size range %.2f–%.2f m²)",
		len(raw), len(result), scaler.Min, scaler.Max)
	return result, scaler, nil
}

func (c *Cleaner) inBounds(l *models.Listing) bool {
	b := c.bounds
	return l.Rent > b.RentMin && l.Rent < b.RentMax &&
		l.Size > b.SizeMin && l.Size < b.SizeMax
}

func fitScaler(listings []*models.Listing) models.SizeScaler {
	s := models.SizeScaler{Min: listings[0].Size, Max: listings[0].Size}
	for _, l := range listings[1:] {
		s.Min = math.Min(s.Min, l.Size)
		s.Max = math.Max(s.Max, l.Size)
	}
	return s
}

// parseRent strips the euro sign, treats a comma as the decimal separator
// and parses what remains.
//
//	"450 €"  → 450
//	"450,50" → 450.5
func parseRent(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, "€", "")
	s = strings.ReplaceAll(s, ",", ".")
	return parseNumber(s)
}

// parseSize strips the square-metre unit and parses what remains.
func parseSize(raw string) (float64, bool) {
	return parseNumber(strings.ReplaceAll(raw, "m²", ""))
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
