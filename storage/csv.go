package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"rent-radar/models"
)

// ErrMissingColumns is returned when a table lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

var (
	// RawColumns is the schema produced by ingestion.
	RawColumns = []string{"id", "city", "title", "rent_raw", "size_raw"}
	// ListingColumns is the schema of every cleaned handoff file.
	ListingColumns = []string{"id", "city", "title", "rent_raw", "size_raw", "rent", "size", "size_norm"}
	// ActivationColumns is what the applier needs to run inference.
	ActivationColumns = []string{"id", "city", "size", "size_norm"}
)

// CSVWriter writes rows to a CSV file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRow appends one record.
func (c *CSVWriter) WriteRow(row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// WriteRaw writes the raw ingestion table.
func WriteRaw(path string, listings []*models.RawListing) error {
	w, err := NewCSVWriter(path, RawColumns)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if err := w.WriteRow([]string{l.ID, l.City, l.Title, l.RentRaw, l.SizeRaw}); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteListings writes a cleaned table.
func WriteListings(path string, listings []*models.Listing) error {
	w, err := NewCSVWriter(path, ListingColumns)
	if err != nil {
		return err
	}
	for _, l := range listings {
		row := []string{
			l.ID, l.City, l.Title, l.RentRaw, l.SizeRaw,
			FormatFloat(l.Rent), FormatFloat(l.Size), FormatFloat(l.SizeNorm),
		}
		if err := w.WriteRow(row); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// ReadRaw loads a raw ingestion table.
func ReadRaw(path string) ([]*models.RawListing, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(RawColumns...); err != nil {
		return nil, err
	}

	out := make([]*models.RawListing, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, &models.RawListing{
			ID:      t.get(row, "id"),
			City:    t.get(row, "city"),
			Title:   t.get(row, "title"),
			RentRaw: t.get(row, "rent_raw"),
			SizeRaw: t.get(row, "size_raw"),
		})
	}
	return out, nil
}

// ReadListings loads a cleaned table. Every column in required must be
// present; other known columns are read when available.
func ReadListings(path string, required ...string) ([]*models.Listing, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(required...); err != nil {
		return nil, err
	}

	out := make([]*models.Listing, 0, len(t.rows))
	for i, row := range t.rows {
		l := &models.Listing{
			ID:      t.get(row, "id"),
			City:    t.get(row, "city"),
			Title:   t.get(row, "title"),
			RentRaw: t.get(row, "rent_raw"),
			SizeRaw: t.get(row, "size_raw"),
		}
		for col, dst := range map[string]*float64{"rent": &l.Rent, "size": &l.Size, "size_norm": &l.SizeNorm} {
			if !t.has(col) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(t.get(row, col)), 64)
			if err != nil {
				return nil, fmt.Errorf("csv: %s line %d column %q: %w", filepath.Base(path), i+2, col, err)
			}
			*dst = v
		}
		out = append(out, l)
	}
	return out, nil
}

// FormatFloat renders a float without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: %q is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}

	t := &table{index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read %q: %w", path, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("csv: %w: %s", ErrMissingColumns, strings.Join(missing, ", "))
}

func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
