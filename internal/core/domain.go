package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Period identifies one (year, month) bucket. At most one Record exists per Period.
	Period struct {
		Year  int `json:"year"`
		Month int `json:"month"` // 1-12
	}

	// YearRange bounds the years a record may be filed under.
	YearRange struct {
		Min int `json:"min"`
		Max int `json:"max"`
	}

	// Record holds the meter readings and derived consumption for a single period.
	// Field names and tags are the storage and import/export contract.
	Record struct {
		ID                   string  `json:"id" yaml:"id"`
		Year                 int     `json:"year" yaml:"year"`
		Month                int     `json:"month" yaml:"month"`
		HouseholdState       float64 `json:"householdState" yaml:"householdState"`
		HouseholdConsumption float64 `json:"householdConsumption" yaml:"householdConsumption"`
		CarState             float64 `json:"carState" yaml:"carState"`
		CarConsumption       float64 `json:"carConsumption" yaml:"carConsumption"`
		BojlerConsumption    float64 `json:"bojlerConsumption" yaml:"bojlerConsumption"`
		TotalConsumption     float64 `json:"totalConsumption" yaml:"totalConsumption"`
	}

	// Submission is an incoming write for one period. Every value is tri-state:
	// an absent Reading means "keep what is there" on merge and "zero" on insert.
	Submission struct {
		Year              int
		Month             int
		HouseholdState    Reading
		CarState          Reading
		BojlerConsumption Reading
		// Overrides bypass derivation from meter states when set.
		HouseholdOverride Reading
		CarOverride       Reading
	}
)

// DefaultYearRange is used when no range is configured.
var DefaultYearRange = YearRange{Min: 2020, Max: 2040}

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrYearOutOfRange  = errors.New("year out of supported range")
	ErrRecordNotFound  = errors.New("record not found")
	ErrPeriodTaken     = errors.New("period already has a record")
	ErrEmptyID         = errors.New("empty record id")
	ErrNegativeValue   = errors.New("negative value")
	ErrNonFiniteValue  = errors.New("non-finite value")
	ErrUnknownField    = errors.New("unknown field")
	ErrInconsistentSum = errors.New("total consumption does not match household + car")
)

// Contains reports whether year lies within the range, bounds included.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// Before reports whether p is chronologically earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Validate checks the month and that the year is supported.
func (p Period) Validate(years YearRange) error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, p.Month)
	}
	if !years.Contains(p.Year) {
		return fmt.Errorf("%w: %d (supported %d-%d)", ErrYearOutOfRange, p.Year, years.Min, years.Max)
	}
	return nil
}

// Period returns the record's (year, month) key.
func (r Record) Period() Period {
	return Period{Year: r.Year, Month: r.Month}
}

// Validate checks a record coming from outside the reconciler (imports, stores).
func (r Record) Validate(years YearRange) error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if err := r.Period().Validate(years); err != nil {
		return err
	}
	values := map[string]float64{
		"householdState":       r.HouseholdState,
		"householdConsumption": r.HouseholdConsumption,
		"carState":             r.CarState,
		"carConsumption":       r.CarConsumption,
		"bojlerConsumption":    r.BojlerConsumption,
		"totalConsumption":     r.TotalConsumption,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNonFiniteValue, name)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrNegativeValue, name, v)
		}
	}
	if !r.totalMatches() {
		return fmt.Errorf("%w: %v != %v + %v", ErrInconsistentSum,
			r.TotalConsumption, r.HouseholdConsumption, r.CarConsumption)
	}
	return nil
}

// totalPrecision is the number of decimal places compared when checking a
// stored total against its parts.
const totalPrecision = 6

func (r Record) totalMatches() bool {
	want := decimal.NewFromFloat(sum(r.HouseholdConsumption, r.CarConsumption)).Round(totalPrecision)
	return decimal.NewFromFloat(r.TotalConsumption).Round(totalPrecision).Equal(want)
}

// withTotal recomputes TotalConsumption. Bojler consumption is not part of the total.
func (r Record) withTotal() Record {
	r.TotalConsumption = sum(r.HouseholdConsumption, r.CarConsumption)
	return r
}

// Period returns the submission's target period.
func (s Submission) Period() Period {
	return Period{Year: s.Year, Month: s.Month}
}

// Validate checks the target period and that set meter states are usable.
func (s Submission) Validate(years YearRange) error {
	if err := s.Period().Validate(years); err != nil {
		return err
	}
	states := []struct {
		name string
		r    Reading
	}{
		{"householdState", s.HouseholdState},
		{"carState", s.CarState},
	}
	for _, st := range states {
		v, ok := st.r.Get()
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNonFiniteValue, st.name)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrNegativeValue, st.name, v)
		}
	}
	return nil
}
