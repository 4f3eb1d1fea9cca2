package immodata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"rent-radar/models"
	"rent-radar/utils"
)

const (
	colCity = "regio2"
	colRent = "baseRent"
	colSize = "livingSpace"

	firstID = 1000000
	title   = "Real Market Listing"
)

// Options configures the filter. The rent and size limits are exclusive.
type Options struct {
	Path        string
	Cities      []string
	RentMin     float64
	RentMax     float64
	SizeMin     float64
	SizeMax     float64
	SampleLimit int
	SampleSeed  int64
}

// DefaultOptions keeps student-sized rooms in the six largest markets.
func DefaultOptions(path string) Options {
	return Options{
		Path:        path,
		Cities:      []string{"Potsdam", "Berlin", "München", "Hamburg", "Köln", "Frankfurt am Main"},
		RentMin:     150,
		RentMax:     1500,
		SizeMin:     10,
		SizeMax:     60,
		SampleLimit: 2000,
		SampleSeed:  42,
	}
}

// Source extracts student housing rows from a large rental-market CSV export.
type Source struct {
	opts   Options
	logger *utils.Logger
}

// New creates a dataset Source.
func New(opts Options, logger *utils.Logger) *Source {
	return &Source{opts: opts, logger: logger}
}

// Fetch streams the export, keeps rows in the target cities within the rent
// and size limits, numbers them from 1000000 and samples down to SampleLimit.
func (s *Source) Fetch(ctx context.Context) ([]*models.RawListing, error) {
	f, err := os.Open(s.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("immodata: open %q: %w", s.opts.Path, err)
	}
	defer f.Close()

	s.logger.Info("[immodata] Reading %s", s.opts.Path)

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("immodata: read header: %w", err)
	}
	idx, err := columnIndex(header, colCity, colRent, colSize)
	if err != nil {
		return nil, err
	}

	cities := make(map[string]struct{}, len(s.opts.Cities))
	for _, c := range s.opts.Cities {
		cities[c] = struct{}{}
	}

	var (
		kept  []*models.RawListing
		total int
	)
	for {
		if total%50000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("immodata: %w", err)
			}
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("immodata: read row %d: %w", total+2, err)
		}
		total++

		city := field(row, idx[colCity])
		if _, ok := cities[city]; !ok {
			continue
		}
		rent, ok := number(field(row, idx[colRent]))
		if !ok || rent <= s.opts.RentMin || rent >= s.opts.RentMax {
			continue
		}
		size, ok := number(field(row, idx[colSize]))
		if !ok || size <= s.opts.SizeMin || size >= s.opts.SizeMax {
			continue
		}

		kept = append(kept, &models.RawListing{
			City:    city,
			Title:   title,
			RentRaw: strconv.FormatFloat(rent, 'f', -1, 64),
			SizeRaw: strconv.FormatFloat(size, 'f', -1, 64),
		})
	}

	s.logger.Info("[immodata] Source contains %d rows, %d match the student filter", total, len(kept))

	for i, l := range kept {
		l.ID = strconv.Itoa(firstID + i)
	}

	if s.opts.SampleLimit > 0 && len(kept) > s.opts.SampleLimit {
		kept = sample(kept, s.opts.SampleLimit, s.opts.SampleSeed)
		s.logger.Info("[immodata] Sampled %d rows (seed %d)", len(kept), s.opts.SampleSeed)
	}

	if len(kept) == 0 {
		return nil, errors.New("immodata: no rows matched the filter")
	}
	return kept, nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("immodata: missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func number(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// sample picks k rows without replacement, in sampled order.
func sample(rows []*models.RawListing, k int, seed int64) []*models.RawListing {
	perm := rand.New(rand.NewSource(seed)).Perm(len(rows))
	out := make([]*models.RawListing, k)
	for i := 0; i < k; i++ {
		out[i] = rows[perm[i]]
	}
	return out
}
