package core

import (
	"fmt"
	"sort"
	"time"
)

// Field names a numeric column of a Record.
type Field string

const (
	FieldHouseholdState       Field = "householdState"
	FieldHouseholdConsumption Field = "householdConsumption"
	FieldCarState             Field = "carState"
	FieldCarConsumption       Field = "carConsumption"
	FieldBojlerConsumption    Field = "bojlerConsumption"
	FieldTotalConsumption     Field = "totalConsumption"
)

// Fields lists every numeric column in wire order.
var Fields = []Field{
	FieldHouseholdState,
	FieldHouseholdConsumption,
	FieldCarState,
	FieldCarConsumption,
	FieldBojlerConsumption,
	FieldTotalConsumption,
}

// ParseField resolves a wire name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Of extracts the field's value from r.
func (f Field) Of(r Record) float64 {
	switch f {
	case FieldHouseholdState:
		return r.HouseholdState
	case FieldHouseholdConsumption:
		return r.HouseholdConsumption
	case FieldCarState:
		return r.CarState
	case FieldCarConsumption:
		return r.CarConsumption
	case FieldBojlerConsumption:
		return r.BojlerConsumption
	case FieldTotalConsumption:
		return r.TotalConsumption
	}
	return 0
}

// SortChronologically returns a copy of records ordered by (year, month).
func SortChronologically(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Period().Before(out[j].Period())
	})
	return out
}

// PreviousReading returns the given field of the latest record strictly before
// target, ignoring the record with excludeID. Absent when no such record exists.
func PreviousReading(records []Record, target Period, field Field, excludeID string) Reading {
	var (
		found bool
		best  Record
	)
	for _, r := range records {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		p := r.Period()
		if !p.Before(target) {
			continue
		}
		if !found || best.Period().Before(p) {
			best, found = r, true
		}
	}
	if !found {
		return Absent()
	}
	return Value(field.Of(best))
}

// Latest returns the chronologically last record.
func Latest(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	sorted := SortChronologically(records)
	return sorted[len(sorted)-1], true
}

// MonthLabel is the short English month name used in tabular views.
func MonthLabel(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()[:3]
}
