package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformedJSON is returned when model output is not exactly one JSON value of the expected shape
var ErrMalformedJSON = errors.New("malformed JSON")

var fencedBlock = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\n?(.*?)\\s*```$")

// DecodeStrictJSON decodes model output into target.
//
// The whole response must be a single JSON value, optionally wrapped in one
// markdown code fence. Unknown fields, trailing data and surrounding prose are
// rejected; nothing is repaired or guessed.
func DecodeStrictJSON(input string, target interface{}) error {
	body := unwrapFence(strings.TrimSpace(strings.TrimPrefix(input, "\ufeff")))
	if body == "" {
		return fmt.Errorf("%w: empty input", ErrMalformedJSON)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v (input: %s)", ErrMalformedJSON, err, truncateString(body, 100))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", ErrMalformedJSON)
	}
	return nil
}

// unwrapFence removes a single markdown code fence that spans the whole input
func unwrapFence(input string) string {
	if m := fencedBlock.FindStringSubmatch(input); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return input
}

// ValidateJSON checks if a string is valid JSON
func ValidateJSON(input string) bool {
	return json.Valid([]byte(input))
}

// CompactJSON re-encodes raw JSON without insignificant whitespace, for logging
func CompactJSON(input string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(input)); err != nil {
		return truncateString(input, 200)
	}
	return buf.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
