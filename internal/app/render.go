package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// unknownErrorDetail is shown when an error response carries no usable detail.
const unknownErrorDetail = "Unknown error"

// prettyJSON re-indents one JSON document with two-space indentation, keeping key order.
func prettyJSON(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	return buf.String(), nil
}

// errorDetail extracts the display message from an error response body.
// The body must be JSON. Only a falsy detail (absent, null, false, 0, "")
// falls back to the generic message; any other string is shown verbatim.
func errorDetail(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return unknownErrorDetail, nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return unknownErrorDetail, nil
	}
	raw, ok := payload["detail"]
	if !ok {
		return unknownErrorDetail, nil
	}
	var detail any
	if err := json.Unmarshal(raw, &detail); err != nil {
		return unknownErrorDetail, nil
	}
	switch v := detail.(type) {
	case nil:
		return unknownErrorDetail, nil
	case string:
		if v == "" {
			return unknownErrorDetail, nil
		}
		return v, nil
	case bool:
		if !v {
			return unknownErrorDetail, nil
		}
		return "true", nil
	case float64:
		if v == 0 {
			return unknownErrorDetail, nil
		}
		return formatNumber(v), nil
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return unknownErrorDetail, nil
		}
		return compact.String(), nil
	}
}

// formatNumber renders v the way a browser prints a number: plain decimal
// between 1e-6 and 1e21, shortest exponent form outside that range.
func formatNumber(v float64) string {
	abs := math.Abs(v)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + sign + exp
}
