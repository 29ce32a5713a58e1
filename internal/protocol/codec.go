// Package protocol implements the line-oriented client/peer wire protocol:
// tokenizing an inbound line, classifying it into one of four command
// kinds, and validating argument shape before a handler ever sees it.
package protocol

import (
	"strconv"
	"strings"
)

// Kind identifies which of the four command shapes a line classified as.
type Kind int

const (
	// Invalid covers unknown verbs, wrong arity, and constraint violations.
	Invalid Kind = iota
	IAMAT
	WHATSAT
	Update
)

func (k Kind) String() string {
	switch k {
	case IAMAT:
		return "IAMAT"
	case WHATSAT:
		return "WHATSAT"
	case Update:
		return "UPDATE"
	default:
		return "Invalid"
	}
}

// Command is a classified, validated request line. Tokens contains at least
// the verb, except for a blank line, which classifies as Invalid with no
// tokens; Line preserves the exact original text (no trailing
// newline) so handlers can echo it back verbatim in "?" replies and so
// UPDATE can be re-flooded byte-for-byte.
type Command struct {
	Kind   Kind
	Tokens []string
	Line   string
}

// ParseLine tokenizes and classifies a single inbound line.
func ParseLine(line string) Command {
	tokens := tokenize(line)
	cmd := Command{Tokens: tokens, Line: line}

	if len(tokens) == 0 {
		cmd.Kind = Invalid
		return cmd
	}

	switch tokens[0] {
	case "IAMAT":
		if len(tokens) == 4 && validLocation(tokens[2]) {
			cmd.Kind = IAMAT
			return cmd
		}
	case "WHATSAT":
		if len(tokens) == 4 && validRadiusAndLimit(tokens[2], tokens[3]) {
			cmd.Kind = WHATSAT
			return cmd
		}
	case "UPDATE":
		if len(tokens) == 6 {
			cmd.Kind = Update
			return cmd
		}
	}

	cmd.Kind = Invalid
	return cmd
}

// tokenize splits on runs of ASCII whitespace, discarding empty tokens. An
// empty token sequence (blank line) yields a nil slice, which ParseLine
// treats as Invalid.
func tokenize(line string) []string {
	return strings.FieldsFunc(line, isASCIISpace)
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func validRadiusAndLimit(radiusTok, limitTok string) bool {
	radius, err := strconv.Atoi(radiusTok)
	if err != nil || radius <= 0 || radius > 50 {
		return false
	}
	limit, err := strconv.Atoi(limitTok)
	if err != nil || limit <= 0 || limit > 20 {
		return false
	}
	return true
}

// validLocation checks the "±LAT±LON" shape: exactly two sign characters,
// the first at position 0, the second not the final character, and both
// halves parsing as decimals within range.
func validLocation(loc string) bool {
	_, _, ok := splitLocation(loc)
	return ok
}

// splitLocation parses a "±LAT±LON" token into its signed lat/lon textual
// halves. It returns ok=false for anything that fails the shape or range
// checks.
func splitLocation(loc string) (lat string, lon string, ok bool) {
	var signIdx []int
	for i, r := range loc {
		if r == '+' || r == '-' {
			signIdx = append(signIdx, i)
		}
	}
	if len(signIdx) != 2 {
		return "", "", false
	}
	if signIdx[0] != 0 || signIdx[1] == len(loc)-1 {
		return "", "", false
	}

	lat = loc[signIdx[0]:signIdx[1]]
	lon = loc[signIdx[1]:]

	latVal, err := strconv.ParseFloat(lat, 64)
	if err != nil || latVal < -90 || latVal > 90 {
		return "", "", false
	}
	lonVal, err := strconv.ParseFloat(lon, 64)
	if err != nil || lonVal < -180 || lonVal > 180 {
		return "", "", false
	}

	return lat, lon, true
}

// SplitLocation exposes splitLocation for handlers that need the signed
// lat/lon halves of an already-validated location string (e.g. WHATSAT
// building the Places query center).
func SplitLocation(loc string) (lat string, lon string, ok bool) {
	return splitLocation(loc)
}
