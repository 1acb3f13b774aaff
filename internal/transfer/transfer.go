// Package transfer reads and writes whole record sets as JSON or YAML documents.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"potrosnja/internal/core"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// maxDocumentSize caps what Decode will read.
const maxDocumentSize = 8 << 20

// ParseFormat maps a query value or file extension to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// wireRecord uses pointers so missing fields can be told apart from zeros.
type wireRecord struct {
	ID                   *string  `json:"id" yaml:"id"`
	Year                 *int     `json:"year" yaml:"year"`
	Month                *int     `json:"month" yaml:"month"`
	HouseholdState       *float64 `json:"householdState" yaml:"householdState"`
	HouseholdConsumption *float64 `json:"householdConsumption" yaml:"householdConsumption"`
	CarState             *float64 `json:"carState" yaml:"carState"`
	CarConsumption       *float64 `json:"carConsumption" yaml:"carConsumption"`
	BojlerConsumption    *float64 `json:"bojlerConsumption" yaml:"bojlerConsumption"`
	TotalConsumption     *float64 `json:"totalConsumption" yaml:"totalConsumption"`
}

// Decode parses and validates a full record set. Any problem is reported as
// ErrMalformedDocument; nothing is returned unless the whole document is valid.
func Decode(r io.Reader, f Format, years core.YearRange) ([]core.Record, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrMalformedDocument, maxDocumentSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}

	var wire []wireRecord
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&wire)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&wire)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	records := make([]core.Record, 0, len(wire))
	for i, w := range wire {
		rec, err := w.record()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedDocument, i, err)
		}
		records = append(records, rec)
	}
	if err := Validate(records, years); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return records, nil
}

// Validate checks every record and that ids and periods are unique.
func Validate(records []core.Record, years core.YearRange) error {
	ids := make(map[string]int, len(records))
	periods := make(map[core.Period]int, len(records))
	for i, r := range records {
		if err := r.Validate(years); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if j, ok := ids[r.ID]; ok {
			return fmt.Errorf("records %d and %d share id %q", j, i, r.ID)
		}
		ids[r.ID] = i
		if j, ok := periods[r.Period()]; ok {
			return fmt.Errorf("records %d and %d share period %s", j, i, r.Period())
		}
		periods[r.Period()] = i
	}
	return nil
}

// Encode writes records in the given format.
func Encode(w io.Writer, records []core.Record, f Format) error {
	if records == nil {
		records = []core.Record{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func (w wireRecord) record() (core.Record, error) {
	var missing []string
	str := func(name string, p *string) string {
		if p == nil {
			missing = append(missing, name)
			return ""
		}
		return *p
	}
	num := func(name string, p *int) int {
		if p == nil {
			missing = append(missing, name)
			return 0
		}
		return *p
	}
	val := func(name string, p *float64) float64 {
		if p == nil {
			missing = append(missing, name)
			return 0
		}
		return *p
	}
	rec := core.Record{
		ID:                   str("id", w.ID),
		Year:                 num("year", w.Year),
		Month:                num("month", w.Month),
		HouseholdState:       val("householdState", w.HouseholdState),
		HouseholdConsumption: val("householdConsumption", w.HouseholdConsumption),
		CarState:             val("carState", w.CarState),
		CarConsumption:       val("carConsumption", w.CarConsumption),
		BojlerConsumption:    val("bojlerConsumption", w.BojlerConsumption),
		TotalConsumption:     val("totalConsumption", w.TotalConsumption),
	}
	if len(missing) > 0 {
		return core.Record{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return rec, nil
}
