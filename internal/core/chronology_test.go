package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []Record {
	// insertion order deliberately differs from chronological order
	return []Record{
		{ID: "mar", Year: 2024, Month: 3, HouseholdState: 210, CarState: 40},
		{ID: "jan", Year: 2024, Month: 1, HouseholdState: 100, CarState: 10},
		{ID: "dec", Year: 2023, Month: 12, HouseholdState: 80, CarState: 5},
		{ID: "feb", Year: 2024, Month: 2, HouseholdState: 150, CarState: 25},
	}
}

func TestPreviousReading(t *testing.T) {
	records := fixture()
	tests := []struct {
		name    string
		target  Period
		field   Field
		exclude string
		want    Reading
	}{
		{"latest before march", Period{2024, 3}, FieldHouseholdState, "", Value(150)},
		{"car field", Period{2024, 3}, FieldCarState, "", Value(25)},
		{"crosses year boundary", Period{2024, 1}, FieldHouseholdState, "", Value(80)},
		{"nothing before", Period{2023, 12}, FieldHouseholdState, "", Absent()},
		{"gap is skipped", Period{2024, 6}, FieldHouseholdState, "", Value(210)},
		{"excluded record ignored", Period{2024, 3}, FieldHouseholdState, "feb", Value(100)},
		{"strictly before", Period{2024, 2}, FieldHouseholdState, "", Value(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreviousReading(records, tt.target, tt.field, tt.exclude))
		})
	}
}

func TestPreviousReadingNeverReturnsOwnState(t *testing.T) {
	records := fixture()
	for _, r := range records {
		got := PreviousReading(records, r.Period(), FieldHouseholdState, r.ID)
		if v, ok := got.Get(); ok {
			assert.NotEqual(t, r.HouseholdState, v, "record %s resolved to itself", r.ID)
		}
	}
}

func TestSortChronologicallyDoesNotMutate(t *testing.T) {
	records := fixture()
	sorted := SortChronologically(records)

	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"dec", "jan", "feb", "mar"}, ids)
	assert.Equal(t, "mar", records[0].ID)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	r, ok := Latest(fixture())
	require.True(t, ok)
	assert.Equal(t, "mar", r.ID)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("carConsumption")
	require.NoError(t, err)
	assert.Equal(t, FieldCarConsumption, f)

	_, err = ParseField("gasConsumption")
	assert.ErrorIs(t, err, ErrUnknownField)
}
