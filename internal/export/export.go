package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/fashion-scraper/internal/models"
)

const (
	listSeparator = " | "
	sizeSeparator = "; "

	NoReviews = "No reviews"
	NoImages  = "Image not available"
	NoSizes   = "No sizes"
)

// Header is the CSV column order; it matches the JSON key order.
var Header = []string{
	"site",
	"search_query",
	"brand",
	"name",
	"product_url",
	"price",
	"original_price",
	"discount_percent",
	"rating",
	"review_count",
	"reviews",
	"image_urls",
	"sizes",
	"breadcrumb",
}

// Writer writes <dir>/<site>_products.csv and .json, or
// <dir>/<run id>/<site>_products.* when runs get their own directory.
type Writer struct {
	dir    string
	perRun bool
	logger *slog.Logger
}

type Option func(*Writer)

// WithRunDirs places each run's files in a subdirectory named after the
// run ID, so concurrent or successive runs never overwrite each other.
func WithRunDirs() Option {
	return func(w *Writer) {
		w.perRun = true
	}
}

func NewWriter(dir string, opts ...Option) *Writer {
	if dir == "" {
		dir = "."
	}
	w := &Writer{
		dir:    dir,
		logger: slog.Default().With("component", "exporter"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) runDir(run *models.Run) string {
	if w.perRun && run.ID != "" {
		return filepath.Join(w.dir, run.ID)
	}
	return w.dir
}

func (w *Writer) Paths(run *models.Run) (csvPath, jsonPath string) {
	base := filepath.Join(w.runDir(run), run.Site+"_products")
	return base + ".csv", base + ".json"
}

// Export writes both files for run and records their paths on it.
func (w *Writer) Export(run *models.Run) error {
	dir := w.runDir(run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &models.ExportError{Path: dir, Err: err}
	}

	csvPath, jsonPath := w.Paths(run)
	if err := WriteCSV(csvPath, run.Records); err != nil {
		return err
	}
	if err := WriteJSON(jsonPath, run.Records); err != nil {
		return err
	}

	run.CSVPath = csvPath
	run.JSONPath = jsonPath
	w.logger.Info("exported records", "count", len(run.Records), "csv", csvPath, "json", jsonPath)
	return nil
}

func WriteCSV(path string, records []*models.ProductRecord) error {
	return writeAtomic(path, func(f io.Writer) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(Header); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write(csvRow(rec)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func WriteJSON(path string, records []*models.ProductRecord) error {
	if records == nil {
		records = make([]*models.ProductRecord, 0)
	}
	return writeAtomic(path, func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(records)
	})
}

func ReadCSV(path string) ([]*models.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("%s: unexpected header %v", path, rows[0])
	}

	records := make([]*models.ProductRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func ReadJSON(path string) ([]*models.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []*models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}

func csvRow(rec *models.ProductRecord) []string {
	sizes := make([]string, 0, len(rec.Sizes))
	for _, s := range rec.Sizes {
		sizes = append(sizes, s.String())
	}

	return []string{
		rec.Site,
		rec.SearchQuery,
		rec.Brand,
		rec.Name,
		rec.ProductURL,
		rec.Price.String(),
		rec.OriginalPrice.String(),
		rec.DiscountPercent.String(),
		rec.Rating.String(),
		rec.ReviewCount.String(),
		joinOr(rec.Reviews, listSeparator, NoReviews),
		joinOr(rec.ImageURLs, listSeparator, NoImages),
		joinOr(sizes, sizeSeparator, NoSizes),
		rec.Breadcrumb,
	}
}

func parseRow(row []string) (*models.ProductRecord, error) {
	if len(row) != len(Header) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}

	rec := models.NewProductRecord(row[0], row[1], row[4])
	rec.Brand = row[2]
	rec.Name = row[3]
	rec.Breadcrumb = row[13]

	numbers := []*models.Number{&rec.Price, &rec.OriginalPrice, &rec.DiscountPercent, &rec.Rating, &rec.ReviewCount}
	for i, n := range numbers {
		v, err := models.ParseNumber(row[5+i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", Header[5+i], err)
		}
		*n = v
	}

	rec.Reviews = splitOr(row[10], listSeparator, NoReviews)
	rec.ImageURLs = splitOr(row[11], listSeparator, NoImages)
	for _, s := range splitOr(row[12], sizeSeparator, NoSizes) {
		rec.Sizes = append(rec.Sizes, models.ParseSizeAvailability(s))
	}
	return rec, nil
}

// joinOr joins values with sep. Backslashes and the separator character
// inside a value are escaped with a backslash, as is a lone value equal to
// the empty sentinel, so splitOr returns exactly the original list.
func joinOr(values []string, sep, empty string) string {
	if len(values) == 0 {
		return empty
	}
	if len(values) == 1 && values[0] == empty {
		return `\` + escapeItem(values[0], sep)
	}

	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escapeItem(v, sep)
	}
	return strings.Join(escaped, sep)
}

func splitOr(value, sep, empty string) []string {
	if value == "" || value == empty {
		return make([]string, 0)
	}

	items := make([]string, 0, strings.Count(value, sep)+1)
	var item strings.Builder
	for i := 0; i < len(value); i++ {
		switch {
		case value[i] == '\\' && i+1 < len(value):
			i++
			item.WriteByte(value[i])
		case strings.HasPrefix(value[i:], sep):
			items = append(items, item.String())
			item.Reset()
			i += len(sep) - 1
		default:
			item.WriteByte(value[i])
		}
	}
	return append(items, item.String())
}

func escapeItem(value, sep string) string {
	mark := strings.TrimSpace(sep)
	if !strings.ContainsAny(value, `\`+mark) {
		return value
	}

	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' || strings.IndexByte(mark, value[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	return b.String()
}

// writeAtomic writes to path.tmp and renames it over path, so readers never
// see a partial file.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmpFile := path + ".tmp"

	f, err := os.Create(tmpFile)
	if err != nil {
		return &models.ExportError{Path: path, Err: err}
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return &models.ExportError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return &models.ExportError{Path: path, Err: err}
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return &models.ExportError{Path: path, Err: err}
	}
	return nil
}
