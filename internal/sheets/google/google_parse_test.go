package google

import (
	"testing"

	"potrosnja/internal/core"
)

func TestParseRecords(t *testing.T) {
	values := [][]interface{}{
		// columns reordered by hand in the sheet
		{"id", "month", "year", "householdState", "householdConsumption", "carState", "carConsumption", "bojlerConsumption", "totalConsumption"},
		{"a", 1.0, 2024.0, 100.0, 0.0, 10.0, 0.0, 2.5, 0.0},
		{"b", "2", "2024", "150,5", "50,5", 12.0, 2.0, "", 52.5},
		{},
		{"", "", "", "", "", "", "", "", ""},
		{"", 3.0, 2024.0, 1.0},
		{"c", 13.0, 2024.0, 1.0},
		{"d", "x", 2024.0, 1.0},
		{"e", 4.0, 2024.0, 1234567.0},
	}

	got, skipped, err := parseRecords(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if skipped != 3 {
		t.Fatalf("expected 3 skipped rows, got %d", skipped)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}

	a := got[0]
	if a.ID != "a" || a.Year != 2024 || a.Month != 1 || a.HouseholdState != 100 || a.BojlerConsumption != 2.5 {
		t.Fatalf("unexpected first record: %+v", a)
	}
	b := got[1]
	if b.Month != 2 || b.HouseholdState != 150.5 || b.HouseholdConsumption != 50.5 || b.BojlerConsumption != 0 {
		t.Fatalf("unexpected second record: %+v", b)
	}
	if got[2].HouseholdState != 1234567 {
		t.Fatalf("large reading mangled: %v", got[2].HouseholdState)
	}
}

func TestParseRecords_MissingHeader(t *testing.T) {
	values := [][]interface{}{{"id", "year", "month"}}
	if _, _, err := parseRecords(values); err == nil {
		t.Fatal("expected header error")
	}
	recs, _, err := parseRecords(nil)
	if err != nil || len(recs) != 0 {
		t.Fatalf("empty sheet should yield no records, got %v err=%v", recs, err)
	}
}

func TestToRows(t *testing.T) {
	records := []core.Record{{ID: "a", Year: 2024, Month: 1, HouseholdState: 100, TotalConsumption: 3}}
	rows := toRows(records)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][8] != "totalConsumption" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	back, skipped, err := parseRecords(rows)
	if err != nil || skipped != 0 || len(back) != 1 || back[0] != records[0] {
		t.Fatalf("rows do not parse back: %v skipped=%d err=%v", back, skipped, err)
	}
}
