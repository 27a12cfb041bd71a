package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one data row addressed by header name.
type Record struct {
	fields []string
	header map[string]int
}

// Get returns the trimmed value of column, or "" when the column is absent.
func (r Record) Get(column string) string {
	idx, ok := r.header[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// Float parses column as float64. Empty or malformed cells read as 0.
func (r Record) Float(column string) float64 {
	return ParseFloat(r.Get(column))
}

// ParseFloat parses s, treating empty cells and NaN as 0.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return 0
	}
	return v
}

// Reader iterates a headered CSV stream. Rows the csv package cannot parse
// are skipped and counted.
type Reader struct {
	r       *csv.Reader
	header  map[string]int
	Skipped int
}

// NewReader consumes the header line of r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	header := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}

	return &Reader{r: cr, header: header}, nil
}

// Require fails when any of columns is missing from the header.
func (r *Reader) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := r.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("CSV is missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (Record, error) {
	for {
		fields, err := r.r.Read()
		if err == nil {
			if isBlank(fields) {
				continue
			}
			return Record{fields: fields, header: r.header}, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.Skipped++
			continue
		}
		return Record{}, err
	}
}

// Chunks calls fn with consecutive batches of at most size records.
func (r *Reader) Chunks(size int, fn func(chunk []Record) error) error {
	if size <= 0 {
		size = 1
	}
	chunk := make([]Record, 0, size)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		chunk = append(chunk, rec)
		if len(chunk) == size {
			if err := fn(chunk); err != nil {
				return err
			}
			chunk = make([]Record, 0, size)
		}
	}
	if len(chunk) > 0 {
		return fn(chunk)
	}
	return nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
