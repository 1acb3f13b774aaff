package google

import (
	"fmt"
	"strconv"
	"strings"

	"potrosnja/internal/core"
)

// header is the first row of the sheet, in column order.
var header = []string{
	"id", "year", "month",
	string(core.FieldHouseholdState), string(core.FieldHouseholdConsumption),
	string(core.FieldCarState), string(core.FieldCarConsumption),
	string(core.FieldBojlerConsumption), string(core.FieldTotalConsumption),
}

// parseRecords converts a values matrix (as returned by Sheets API) into records.
// The first row must be the header; columns are located by name so manual
// reordering in the sheet is tolerated. Rows without an id or with an unusable
// period are skipped and counted.
func parseRecords(values [][]interface{}) ([]core.Record, int, error) {
	if len(values) == 0 {
		return nil, 0, nil
	}
	headers := toStrings(values[0])
	cols := make(map[string]int, len(header))
	var missing []string
	for _, name := range header {
		idx := indexOf(headers, name)
		if idx == -1 {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("unexpected header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var (
		out     []core.Record
		skipped int
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		get := func(name string) string { return safeGet(row, cols[name]) }

		id := get("id")
		year, yerr := strconv.Atoi(get("year"))
		month, merr := strconv.Atoi(get("month"))
		if id == "" || yerr != nil || merr != nil || month < 1 || month > 12 {
			skipped++
			continue
		}
		num := func(f core.Field) float64 {
			return core.ParseReading(get(string(f))).Or(0)
		}
		out = append(out, core.Record{
			ID:                   id,
			Year:                 year,
			Month:                month,
			HouseholdState:       num(core.FieldHouseholdState),
			HouseholdConsumption: num(core.FieldHouseholdConsumption),
			CarState:             num(core.FieldCarState),
			CarConsumption:       num(core.FieldCarConsumption),
			BojlerConsumption:    num(core.FieldBojlerConsumption),
			TotalConsumption:     num(core.FieldTotalConsumption),
		})
	}
	return out, skipped, nil
}

// toRows renders records as a values matrix, header first.
func toRows(records []core.Record) [][]interface{} {
	rows := make([][]interface{}, 0, len(records)+1)
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	rows = append(rows, head)
	for _, r := range records {
		rows = append(rows, []interface{}{
			r.ID, r.Year, r.Month,
			r.HouseholdState, r.HouseholdConsumption,
			r.CarState, r.CarConsumption,
			r.BojlerConsumption, r.TotalConsumption,
		})
	}
	return rows
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			// UNFORMATTED_VALUE numbers; avoid exponent notation for large readings
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
