// Package dataset reads and writes credit batches as CSV.
// Decoding is the single place where raw cells become typed records:
// unparseable numbers become missing cells, never errors.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/pkg/logger"
)

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing required column")

// MissingColumnError lists the absent columns
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumn, strings.Join(e.Columns, ", "))
}

// Unwrap supports errors.Is(err, ErrMissingColumn)
func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Codec decodes and encodes record batches
type Codec struct {
	log *logger.Logger
}

// New creates a Codec
func New(log *logger.Logger) *Codec {
	return &Codec{log: log.Component("dataset")}
}

// table is a decoded CSV: cells by known column
type table struct {
	cells map[contracts.Column][]string
	rows  int
}

// readTable loads a CSV and checks that every required column is present.
// Unknown columns are ignored with a warning.
func (c *Codec) readTable(r io.Reader, required []contracts.Column) (*table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	header, hasRows, err := peekHeader(data)
	if err != nil {
		return nil, err
	}

	present := make(map[contracts.Column]bool, len(header))
	var ignored []string
	for _, name := range header {
		col, ok := contracts.ParseColumn(strings.TrimSpace(name))
		if !ok {
			ignored = append(ignored, name)
			continue
		}
		present[col] = true
	}
	if len(ignored) > 0 {
		c.log.WithField("columns", ignored).Warn("Ignoring unknown columns")
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col.String())
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	t := &table{cells: make(map[contracts.Column][]string, len(required))}
	if !hasRows {
		for _, col := range required {
			t.cells[col] = nil
		}
		return t, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	t.rows = df.Nrow()
	for _, name := range df.Names() {
		col, ok := contracts.ParseColumn(strings.TrimSpace(name))
		if !ok {
			continue
		}
		t.cells[col] = df.Col(name).Records()
	}
	return t, nil
}

// peekHeader returns the header row and whether any data row follows
func peekHeader(data []byte) ([]string, bool, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	header, err := cr.Read()
	if err == io.EOF {
		return nil, false, fmt.Errorf("parse csv: header row required")
	}
	if err != nil {
		return nil, false, fmt.Errorf("parse csv header: %w", err)
	}
	_, err = cr.Read()
	if err == io.EOF {
		return header, false, nil
	}
	return header, true, nil
}

// parseCell converts one raw cell. ok is false for empty or unparseable
// cells and for non-finite numbers.
func parseCell(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// maxExactInt bounds the integers a float64 cell represents exactly
const maxExactInt = 1 << 53

// coerce applies the per-column numeric policy: AGE is truncated toward
// zero, other integer columns accept only integral values. Integer cells
// beyond ±2^53 are missing.
func coerce(col contracts.Column, raw string) float64 {
	v, ok := parseCell(raw)
	if !ok {
		return math.NaN()
	}
	if col.IsInteger() && math.Abs(v) > maxExactInt {
		return math.NaN()
	}
	if col == contracts.ColAge {
		return math.Trunc(v)
	}
	if col.IsInteger() && v != math.Trunc(v) {
		return math.NaN()
	}
	return v
}

// formatValue renders a cell; missing cells are written empty
func formatValue(col contracts.Column, v float64, ok bool) string {
	if !ok {
		return ""
	}
	if col.IsInteger() {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadRaw decodes a raw or prepared batch
func (c *Codec) ReadRaw(r io.Reader) ([]contracts.Record, error) {
	return c.readRecords(r, contracts.RawColumns())
}

// ReadSource decodes a batch for feature engineering. Only the
// engineering columns are required; absent columns are missing cells.
func (c *Codec) ReadSource(r io.Reader) ([]contracts.Record, error) {
	return c.readRecords(r, contracts.EngineeringColumns())
}

func (c *Codec) readRecords(r io.Reader, required []contracts.Column) ([]contracts.Record, error) {
	t, err := c.readTable(r, required)
	if err != nil {
		return nil, err
	}

	records := make([]contracts.Record, t.rows)
	for _, col := range contracts.RawColumns() {
		cells, ok := t.cells[col]
		if !ok {
			for i := range records {
				records[i].SetMissing(col)
			}
			continue
		}
		for i, raw := range cells {
			records[i].Set(col, coerce(col, raw))
		}
	}
	return records, nil
}

// ReadFeatures decodes a feature-engineered batch
func (c *Codec) ReadFeatures(r io.Reader) ([]contracts.FeatureRecord, error) {
	cols := contracts.FeatureColumns()
	t, err := c.readTable(r, cols)
	if err != nil {
		return nil, err
	}

	records := make([]contracts.FeatureRecord, t.rows)
	for _, col := range cols {
		for i, raw := range t.cells[col] {
			records[i].Set(col, coerce(col, raw))
		}
	}
	return records, nil
}

// WriteRaw encodes records with the raw column layout
func (c *Codec) WriteRaw(w io.Writer, records []contracts.Record) error {
	cols := contracts.RawColumns()
	rows := make([][]string, len(records))
	for i := range records {
		row := make([]string, len(cols))
		for j, col := range cols {
			v, ok := records[i].Value(col)
			row[j] = formatValue(col, v, ok)
		}
		rows[i] = row
	}
	return writeTable(w, contracts.Names(cols), rows)
}

// WriteFeatures encodes feature records with the feature column layout
func (c *Codec) WriteFeatures(w io.Writer, records []contracts.FeatureRecord) error {
	cols := contracts.FeatureColumns()
	rows := make([][]string, len(records))
	for i := range records {
		row := make([]string, len(cols))
		for j, col := range cols {
			v, ok := records[i].Value(col)
			row[j] = formatValue(col, v, ok)
		}
		rows[i] = row
	}
	return writeTable(w, contracts.Names(cols), rows)
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		cw.Flush()
		return cw.Error()
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	records = append(records, rows...)

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fmt.Errorf("build table: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadRawFile decodes the raw batch at path
func (c *Codec) ReadRawFile(path string) ([]contracts.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := c.ReadRaw(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.log.WithFields(map[string]interface{}{"path": path, "rows": len(records)}).Debug("Loaded batch")
	return records, nil
}

// ReadSourceFile decodes the feature engineering input at path
func (c *Codec) ReadSourceFile(path string) ([]contracts.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := c.ReadSource(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.log.WithFields(map[string]interface{}{"path": path, "rows": len(records)}).Debug("Loaded source batch")
	return records, nil
}

// ReadFeaturesFile decodes the feature batch at path
func (c *Codec) ReadFeaturesFile(path string) ([]contracts.FeatureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := c.ReadFeatures(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.log.WithFields(map[string]interface{}{"path": path, "rows": len(records)}).Debug("Loaded feature batch")
	return records, nil
}

// WriteRawFile writes records to path, creating parent directories
func (c *Codec) WriteRawFile(path string, records []contracts.Record) error {
	return writeFile(path, func(w io.Writer) error { return c.WriteRaw(w, records) })
}

// WriteFeaturesFile writes feature records to path, creating parent directories
func (c *Codec) WriteFeaturesFile(path string, records []contracts.FeatureRecord) error {
	return writeFile(path, func(w io.Writer) error { return c.WriteFeatures(w, records) })
}

func writeFile(path string, encode func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
