package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AnnualTotal sums the consumption of one year.
type AnnualTotal struct {
	Year                 int     `json:"year" yaml:"year"`
	HouseholdConsumption float64 `json:"householdConsumption" yaml:"householdConsumption"`
	CarConsumption       float64 `json:"carConsumption" yaml:"carConsumption"`
	BojlerConsumption    float64 `json:"bojlerConsumption" yaml:"bojlerConsumption"`
	TotalConsumption     float64 `json:"totalConsumption" yaml:"totalConsumption"`
	Months               int     `json:"months" yaml:"months"`
}

// Comparison lines up one field month by month across the most recent years.
type Comparison struct {
	Field Field           `json:"field"`
	Years []int           `json:"years"`
	Rows  []ComparisonRow `json:"rows"`
}

// ComparisonRow holds one calendar month. Values is aligned with Comparison.Years;
// a year without a record for the month has an absent value.
type ComparisonRow struct {
	Month  int       `json:"month"`
	Label  string    `json:"label"`
	Values []Reading `json:"values"`
}

type annualAcc struct {
	household, car, bojler, total decimal.Decimal
	months                        int
}

// AnnualTotals groups records by year, ascending.
func AnnualTotals(records []Record) []AnnualTotal {
	acc := make(map[int]*annualAcc)
	for _, r := range records {
		a, ok := acc[r.Year]
		if !ok {
			a = &annualAcc{}
			acc[r.Year] = a
		}
		a.household = a.household.Add(decimal.NewFromFloat(r.HouseholdConsumption))
		a.car = a.car.Add(decimal.NewFromFloat(r.CarConsumption))
		a.bojler = a.bojler.Add(decimal.NewFromFloat(r.BojlerConsumption))
		a.total = a.total.Add(decimal.NewFromFloat(r.TotalConsumption))
		a.months++
	}

	out := make([]AnnualTotal, 0, len(acc))
	for year, a := range acc {
		out = append(out, AnnualTotal{
			Year:                 year,
			HouseholdConsumption: a.household.InexactFloat64(),
			CarConsumption:       a.car.InexactFloat64(),
			BojlerConsumption:    a.bojler.InexactFloat64(),
			TotalConsumption:     a.total.InexactFloat64(),
			Months:               a.months,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// comparisonYears is how many of the most recent years a Comparison spans.
const comparisonYears = 2

// MonthlyComparison builds 12 rows (January first) comparing field across the
// two most recent years that have records. With fewer years only those appear.
func MonthlyComparison(records []Record, field Field) Comparison {
	seen := make(map[int]bool)
	for _, r := range records {
		seen[r.Year] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	if len(years) > comparisonYears {
		years = years[len(years)-comparisonYears:]
	}

	byPeriod := make(map[Period]Record, len(records))
	for _, r := range records {
		byPeriod[r.Period()] = r
	}

	rows := make([]ComparisonRow, 12)
	for m := 1; m <= 12; m++ {
		values := make([]Reading, len(years))
		for i, y := range years {
			if r, ok := byPeriod[Period{Year: y, Month: m}]; ok {
				values[i] = Value(field.Of(r))
			}
		}
		rows[m-1] = ComparisonRow{Month: m, Label: MonthLabel(m), Values: values}
	}
	return Comparison{Field: field, Years: years, Rows: rows}
}
