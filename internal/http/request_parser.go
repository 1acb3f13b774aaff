// Package http provides the JSON API over the record service.
//
// This file implements utilities for parsing and validating HTTP request data.
// A submission may arrive as JSON or as form data; both carry tri-state
// numbers where a missing or blank value differs from an explicit zero.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"potrosnja/internal/core"
)

// maxBodySize caps submission bodies. Imports have their own limit.
const maxBodySize = 64 << 10

// Submission field names accepted in JSON bodies and forms.
const (
	paramYear              = "year"
	paramMonth             = "month"
	paramHouseholdState    = "householdState"
	paramCarState          = "carState"
	paramBojler            = "bojlerConsumption"
	paramHouseholdOverride = "householdConsumptionOverride"
	paramCarOverride       = "carConsumptionOverride"
)

// errBadRequest marks input that cannot be parsed at all.
var errBadRequest = errors.New("bad request")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(r.Body)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("%w: invalid form body: %v", errBadRequest, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Reading returns a meter state: null, missing, blank or non-numeric values
// are absent.
func (p *RequestBodyParser) Reading(key string) core.Reading {
	if p.jsonData != nil {
		if f, ok := p.jsonData[key].(float64); ok {
			return core.Value(f)
		}
	}
	return core.ParseReading(p.Get(key))
}

// Consumption returns a directly entered consumption: missing or blank is
// absent, a non-numeric value counts as 0.
func (p *RequestBodyParser) Consumption(key string) core.Reading {
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case float64:
			return core.Value(v)
		case nil:
			return core.Absent()
		}
	}
	return core.ParseConsumption(p.Get(key))
}

// Int returns a required integer parameter.
func (p *RequestBodyParser) Int(key string) (int, error) {
	raw := p.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", errBadRequest, key)
	}
	return parseInt(key, raw)
}

// ParseSubmission reads a submission from the request body.
func ParseSubmission(r *http.Request) (core.Submission, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.Submission{}, err
	}

	year, err := p.Int(paramYear)
	if err != nil {
		return core.Submission{}, err
	}
	month, err := p.Int(paramMonth)
	if err != nil {
		return core.Submission{}, err
	}

	return core.Submission{
		Year:              year,
		Month:             month,
		HouseholdState:    p.Reading(paramHouseholdState),
		CarState:          p.Reading(paramCarState),
		BojlerConsumption: p.Consumption(paramBojler),
		HouseholdOverride: p.Reading(paramHouseholdOverride),
		CarOverride:       p.Reading(paramCarOverride),
	}, nil
}

func parseInt(key, raw string) (int, error) {
	if i, err := strconv.Atoi(raw); err == nil {
		return i, nil
	}
	// JSON numbers arrive as float64
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e9 {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadRequest, key, raw)
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
