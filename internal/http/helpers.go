package http

import (
	"net/http"
	"strings"

	"potrosnja/internal/transfer"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatParam resolves the document format from ?format=, falling back to
// the Content-Type header.
func formatParam(r *http.Request) (transfer.Format, error) {
	if f := strings.TrimSpace(r.URL.Query().Get("format")); f != "" {
		return transfer.ParseFormat(f)
	}
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "yaml") {
		return transfer.FormatYAML, nil
	}
	return transfer.FormatJSON, nil
}
