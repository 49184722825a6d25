package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/fashion-scraper/internal/models"
)

// RunArchive appends every finished run and its records to Postgres. Rows
// are never updated; each run is a new snapshot.
type RunArchive struct {
	db     *DB
	logger *slog.Logger
}

func NewRunArchive(db *DB) *RunArchive {
	return &RunArchive{
		db:     db,
		logger: slog.Default().With("component", "run_archive"),
	}
}

func (a *RunArchive) Name() string { return "postgres" }

// Publish stores run and its records in one transaction.
func (a *RunArchive) Publish(ctx context.Context, run *models.Run) error {
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}

	err = a.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertRunSQL,
			runID, run.Site, run.Queries, run.StartedAt, run.FinishedAt,
			run.Collected, run.Extracted, run.Skipped, run.FieldFallbacks,
			run.CSVPath, run.JSONPath,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		batch := &pgx.Batch{}
		for i, rec := range run.Records {
			args, err := recordArgs(runID, i, rec)
			if err != nil {
				return err
			}
			batch.Queue(insertRecordSQL, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Info("archived run", "run_id", run.ID, "records", len(run.Records))
	return nil
}

// Records returns the archived records of a run in extraction order.
func (a *RunArchive) Records(ctx context.Context, runID string) ([]*models.ProductRecord, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	rows, err := a.db.Query(ctx, selectRecordsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ProductRecord, 0)
	for rows.Next() {
		var (
			rec                       models.ProductRecord
			price, original, discount *float64
			rating, reviewCount       *float64
			reviews, images, sizes    []byte
		)
		err := rows.Scan(
			&rec.Site, &rec.SearchQuery, &rec.Brand, &rec.Name, &rec.ProductURL,
			&price, &original, &discount, &rating, &reviewCount,
			&reviews, &images, &sizes, &rec.Breadcrumb,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Price = fromNullable(price)
		rec.OriginalPrice = fromNullable(original)
		rec.DiscountPercent = fromNullable(discount)
		rec.Rating = fromNullable(rating)
		rec.ReviewCount = fromNullable(reviewCount)

		for _, col := range []struct {
			data []byte
			dst  any
		}{{reviews, &rec.Reviews}, {images, &rec.ImageURLs}, {sizes, &rec.Sizes}} {
			if err := json.Unmarshal(col.data, col.dst); err != nil {
				return nil, fmt.Errorf("failed to decode record lists: %w", err)
			}
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// RecentRuns lists the newest archived runs without their records.
func (a *RunArchive) RecentRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	rows, err := a.db.Query(ctx, selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var (
			run models.Run
			id  uuid.UUID
		)
		err := rows.Scan(
			&id, &run.Site, &run.Queries, &run.StartedAt, &run.FinishedAt,
			&run.Collected, &run.Extracted, &run.Skipped, &run.FieldFallbacks,
			&run.CSVPath, &run.JSONPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.ID = id.String()
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

const (
	insertRunSQL = `
		INSERT INTO scrape_runs (
			id, site, queries, started_at, finished_at,
			collected, extracted, skipped, field_fallbacks,
			csv_path, json_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertRecordSQL = `
		INSERT INTO product_records (
			run_id, position, site, search_query, brand, name, product_url,
			price, original_price, discount_percent, rating, review_count,
			reviews, image_urls, sizes, breadcrumb
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13::jsonb, $14::jsonb, $15::jsonb, $16
		)`

	selectRecordsSQL = `
		SELECT site, search_query, brand, name, product_url,
			   price, original_price, discount_percent, rating, review_count,
			   reviews, image_urls, sizes, breadcrumb
		FROM product_records
		WHERE run_id = $1
		ORDER BY position ASC`

	selectRunsSQL = `
		SELECT id, site, queries, started_at, finished_at,
			   collected, extracted, skipped, field_fallbacks,
			   csv_path, json_path
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1`
)

// recordArgs flattens rec into insertRecordSQL parameters. Sentinel numbers
// are stored as NULL and list fields as JSON arrays.
func recordArgs(runID uuid.UUID, position int, rec *models.ProductRecord) ([]any, error) {
	lists := make([]any, 0, 3)
	for _, v := range []any{nonNil(rec.Reviews), nonNil(rec.ImageURLs), nonNilSizes(rec.Sizes)} {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record lists: %w", err)
		}
		lists = append(lists, string(data))
	}

	return []any{
		runID, position, rec.Site, rec.SearchQuery, rec.Brand, rec.Name, rec.ProductURL,
		nullable(rec.Price), nullable(rec.OriginalPrice), nullable(rec.DiscountPercent),
		nullable(rec.Rating), nullable(rec.ReviewCount),
		lists[0], lists[1], lists[2], rec.Breadcrumb,
	}, nil
}

func nullable(n models.Number) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func fromNullable(v *float64) models.Number {
	if v == nil {
		return models.Number{}
	}
	return models.NumberOf(*v)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilSizes(sizes []models.SizeAvailability) []models.SizeAvailability {
	if sizes == nil {
		return []models.SizeAvailability{}
	}
	return sizes
}
