package core

import "fmt"

// Outcome is the result of a reconciliation.
type Outcome struct {
	Record  Record   // the record as stored after the write
	Records []Record // the full collection after the write
	Merged  bool     // true when an existing period was updated in place
}

// Reconcile applies a submission to the collection. When a record already
// exists for the submission's period the submission is merged into it (absent
// values keep what is stored); otherwise a new record is appended with absent
// values taken as zero. The input slice is never modified.
func Reconcile(existing []Record, in Submission, years YearRange, newID func() string) (Outcome, error) {
	period := in.Period()
	if err := in.Validate(years); err != nil {
		return Outcome{}, err
	}

	idx := indexOfPeriod(existing, period)
	out := make([]Record, len(existing), len(existing)+1)
	copy(out, existing)

	if idx >= 0 {
		cur := existing[idx]
		rec := cur
		rec.HouseholdState = in.HouseholdState.Or(cur.HouseholdState)
		rec.CarState = in.CarState.Or(cur.CarState)
		rec.BojlerConsumption = finiteNonNegative(in.BojlerConsumption.Or(cur.BojlerConsumption))
		rec = derive(existing, rec, Value(rec.HouseholdState), Value(rec.CarState), in, cur.ID)
		out[idx] = rec
		return Outcome{Record: rec, Records: out, Merged: true}, nil
	}

	rec := Record{
		ID:                newID(),
		Year:              period.Year,
		Month:             period.Month,
		HouseholdState:    in.HouseholdState.Or(0),
		CarState:          in.CarState.Or(0),
		BojlerConsumption: finiteNonNegative(in.BojlerConsumption.Or(0)),
	}
	rec = derive(existing, rec, in.HouseholdState, in.CarState, in, "")
	out = append(out, rec)
	return Outcome{Record: rec, Records: out}, nil
}

// ApplyUpdate replaces the values of the record with the given id. Every field
// of the submission is taken as is (absent means zero) and the period may
// change, as long as no other record holds the new period.
func ApplyUpdate(existing []Record, id string, in Submission, years YearRange) (Outcome, error) {
	idx := indexOfID(existing, id)
	if idx < 0 {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	period := in.Period()
	if err := in.Validate(years); err != nil {
		return Outcome{}, err
	}
	if other := indexOfPeriod(existing, period); other >= 0 && other != idx {
		return Outcome{}, fmt.Errorf("%w: %s", ErrPeriodTaken, period)
	}

	rec := Record{
		ID:                id,
		Year:              period.Year,
		Month:             period.Month,
		HouseholdState:    in.HouseholdState.Or(0),
		CarState:          in.CarState.Or(0),
		BojlerConsumption: finiteNonNegative(in.BojlerConsumption.Or(0)),
	}
	rec = derive(existing, rec, in.HouseholdState, in.CarState, in, id)

	out := make([]Record, len(existing))
	copy(out, existing)
	out[idx] = rec
	return Outcome{Record: rec, Records: out}, nil
}

// RemoveRecord drops the record with the given id. Neighbouring records keep
// their stored consumption.
func RemoveRecord(existing []Record, id string) ([]Record, Record, error) {
	idx := indexOfID(existing, id)
	if idx < 0 {
		return nil, Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	out := make([]Record, 0, len(existing)-1)
	out = append(out, existing[:idx]...)
	out = append(out, existing[idx+1:]...)
	return out, existing[idx], nil
}

// FindByID returns the record with the given id.
func FindByID(records []Record, id string) (Record, bool) {
	if i := indexOfID(records, id); i >= 0 {
		return records[i], true
	}
	return Record{}, false
}

// Normalize repairs a set read back from a store. Totals are recomputed from
// household and car consumption, and when several records share a period the
// last one wins, keeping the position of the first. repaired counts the
// records that were changed or dropped.
func Normalize(records []Record) (out []Record, repaired int) {
	out = make([]Record, 0, len(records))
	seen := make(map[Period]int, len(records))
	for _, r := range records {
		fixed := r.withTotal()
		if !r.totalMatches() {
			repaired++
		}
		if i, ok := seen[r.Period()]; ok {
			out[i] = fixed
			repaired++
			continue
		}
		seen[r.Period()] = len(out)
		out = append(out, fixed)
	}
	return out, repaired
}

// MergeByPeriod lays newer over base: a record of newer replaces the base
// record of the same period, the rest are appended in order.
func MergeByPeriod(base, newer []Record) []Record {
	out := make([]Record, len(base), len(base)+len(newer))
	copy(out, base)
	for _, r := range newer {
		if i := indexOfPeriod(out, r.Period()); i >= 0 {
			out[i] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

func derive(records []Record, rec Record, household, car Reading, in Submission, excludeID string) Record {
	p := rec.Period()
	rec.HouseholdConsumption = CalculateConsumption(
		household,
		PreviousReading(records, p, FieldHouseholdState, excludeID),
		in.HouseholdOverride,
	)
	rec.CarConsumption = CalculateConsumption(
		car,
		PreviousReading(records, p, FieldCarState, excludeID),
		in.CarOverride,
	)
	return rec.withTotal()
}

func indexOfPeriod(records []Record, p Period) int {
	for i, r := range records {
		if r.Year == p.Year && r.Month == p.Month {
			return i
		}
	}
	return -1
}

func indexOfID(records []Record, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
