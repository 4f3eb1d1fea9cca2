package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rent-radar/models"
)

const (
	partitionTrain = "train"
	partitionTest  = "test"
)

// PostgresWriter persists cleaned listings and predictions to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id          SERIAL PRIMARY KEY,
			listing_id  TEXT          UNIQUE NOT NULL,
			city        TEXT          NOT NULL DEFAULT '',
			title       TEXT          NOT NULL DEFAULT '',
			rent        NUMERIC(10,2) NOT NULL,
			size        NUMERIC(8,2)  NOT NULL,
			size_norm   DOUBLE PRECISION NOT NULL,
			partition   VARCHAR(10)   NOT NULL,
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS predictions (
			id          SERIAL PRIMARY KEY,
			run_id      UUID          NOT NULL,
			listing_id  TEXT          NOT NULL,
			city        TEXT          NOT NULL DEFAULT '',
			size        NUMERIC(8,2)  NOT NULL,
			ann_rent    NUMERIC(10,2) NOT NULL,
			ols_rent    NUMERIC(10,2) NOT NULL,
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_city      ON listings(city);
		CREATE INDEX IF NOT EXISTS idx_listings_partition ON listings(partition);
		CREATE INDEX IF NOT EXISTS idx_predictions_run    ON predictions(run_id);
	`)
	return err
}

// Clear deletes all existing listings from the table.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM listings")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// WriteSplit replaces the stored listings with the train and test partitions.
func (pw *PostgresWriter) WriteSplit(split *models.Split) error {
	if err := pw.Clear(); err != nil {
		return err
	}
	if err := pw.insertListings(split.Train, partitionTrain); err != nil {
		return err
	}
	return pw.insertListings(split.Test, partitionTest)
}

func (pw *PostgresWriter) insertListings(listings []*models.Listing, partition string) error {
	const cols = 7
	return inBatches(len(listings), func(lo, hi int) error {
		batch := listings[lo:hi]
		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*cols)

		for idx, l := range batch {
			valueStrings = append(valueStrings, placeholders(idx*cols, cols))
			valueArgs = append(valueArgs,
				l.ID, l.City, l.Title, l.Rent, l.Size, l.SizeNorm, partition)
		}

		query := fmt.Sprintf(`
			INSERT INTO listings (listing_id, city, title, rent, size, size_norm, partition)
			VALUES %s
			ON CONFLICT (listing_id) DO NOTHING
		`, strings.Join(valueStrings, ","))

		if _, err := pw.db.Exec(query, valueArgs...); err != nil {
			return fmt.Errorf("postgres: insert listings: %w", err)
		}
		return nil
	})
}

// WritePredictions appends applier output.
func (pw *PostgresWriter) WritePredictions(preds []*models.Prediction) error {
	const cols = 6
	return inBatches(len(preds), func(lo, hi int) error {
		batch := preds[lo:hi]
		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*cols)

		for idx, p := range batch {
			valueStrings = append(valueStrings, placeholders(idx*cols, cols))
			valueArgs = append(valueArgs,
				p.RunID, p.ID, p.City, p.SizeSqm, p.ANNRent, p.OLSRent)
		}

		query := fmt.Sprintf(`
			INSERT INTO predictions (run_id, listing_id, city, size, ann_rent, ols_rent)
			VALUES %s
		`, strings.Join(valueStrings, ","))

		if _, err := pw.db.Exec(query, valueArgs...); err != nil {
			return fmt.Errorf("postgres: insert predictions: %w", err)
		}
		return nil
	})
}

// FetchListings retrieves all stored listings, used by the insight service.
func (pw *PostgresWriter) FetchListings() ([]*models.Listing, error) {
	rows, err := pw.db.Query(`
		SELECT listing_id, city, title, rent, size, size_norm
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(&l.ID, &l.City, &l.Title, &l.Rent, &l.Size, &l.SizeNorm); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// placeholders renders "($n+1,...,$n+cols)".
func placeholders(base, cols int) string {
	parts := make([]string, cols)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func inBatches(n int, fn func(lo, hi int) error) error {
	const batchSize = 50
	for i := 0; i < n; i += batchSize {
		end := i + batchSize
		if end > n {
			end = n
		}
		if err := fn(i, end); err != nil {
			return err
		}
	}
	return nil
}
