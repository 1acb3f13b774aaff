package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Reading is an optional number. The zero value is absent; an explicit zero is a value.
type Reading struct {
	value float64
	set   bool
}

// Value returns a present Reading.
func Value(v float64) Reading {
	return Reading{value: v, set: true}
}

// Absent returns a Reading carrying no value.
func Absent() Reading {
	return Reading{}
}

// Get returns the value and whether it is present.
func (r Reading) Get() (float64, bool) {
	return r.value, r.set
}

// IsSet reports whether the reading carries a value.
func (r Reading) IsSet() bool {
	return r.set
}

// Or returns the value, or def when absent.
func (r Reading) Or(def float64) float64 {
	if !r.set {
		return def
	}
	return r.value
}

func (r Reading) String() string {
	if !r.set {
		return ""
	}
	return strconv.FormatFloat(r.value, 'f', -1, 64)
}

// ParseReading converts user text into a Reading. Blank, non-numeric or
// ambiguously separated text is absent. Both "." and "," are accepted as
// decimal separator.
func ParseReading(s string) Reading {
	s = strings.TrimSpace(s)
	if s == "" {
		return Absent()
	}
	// "1.234,5" style: dots are thousands separators. A dot after the comma
	// ("1,234.56") or a second comma leaves the number ambiguous.
	if comma := strings.Index(s, ","); comma >= 0 {
		if strings.LastIndex(s, ".") > comma || strings.Count(s, ",") > 1 {
			return Absent()
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Absent()
	}
	return Value(d.InexactFloat64())
}

// ParseConsumption is ParseReading for directly entered consumption: blank
// text is absent, anything else that is not a number counts as 0.
func ParseConsumption(s string) Reading {
	if strings.TrimSpace(s) == "" {
		return Absent()
	}
	if r := ParseReading(s); r.IsSet() {
		return r
	}
	return Value(0)
}

// MarshalJSON renders an absent reading as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.set {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON accepts null, a number, or a numeric string.
func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Absent()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ParseReading(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Value(v)
	return nil
}

// finiteNonNegative coerces an override to something storable.
func finiteNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}
