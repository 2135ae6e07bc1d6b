package vire

import (
	"strconv"
	"strings"
)

// ParseNumber converts a numeral in canonical source form to a Value,
// following the original's l_str2int/l_str2d strategy (§9
// luaO_str2num equivalent): try a 64-bit integer first (decimal or
// 0x-prefixed hex), then a float, rejecting textual "inf"/"nan" since
// those are not numerals. The lexer is out of scope (§1); within the
// package, string-to-number coercion (coerceNumber) uses this.
func ParseNumber(s string) (Value, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Value{}, false
	}
	if looksLikeInfOrNaN(trimmed) {
		return Value{}, false
	}
	if i, ok := parseInteger(trimmed); ok {
		return Int(i), true
	}
	if f, ok := parseFloat(trimmed); ok {
		return Float(f), true
	}
	return Value{}, false
}

func looksLikeInfOrNaN(s string) bool {
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	return strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan")
}

func parseInteger(s string) (int64, bool) {
	neg := false
	body := s
	switch {
	case strings.HasPrefix(body, "-"):
		neg, body = true, body[1:]
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	}
	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	}
	if body == "" {
		return 0, false
	}
	u, err := strconv.ParseUint(body, base, 64)
	if err != nil {
		return 0, false
	}
	i := int64(u) // wraps per §3.1/§8 two's-complement semantics
	if neg {
		i = -i
	}
	return i, true
}

func parseFloat(s string) (float64, bool) {
	// strconv.ParseFloat already understands leading sign and Go's
	// "0x1.8p3"-style hex floats; Lua hex floats ("0x1.8p3") share
	// that grammar closely enough to reuse it directly.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatFloat implements the original's tostringbuffFloat algorithm:
// format with %.14g, read the result back, and if precision was lost
// reformat with %.17g; append ".0" when the result would otherwise
// look like an integer. This preserves the §8 round-trip law without
// claiming bit-exact formatting (a Non-goal).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 14, 64)
	if back, err := strconv.ParseFloat(s, 64); err != nil || back != f {
		s = strconv.FormatFloat(f, 'g', 17, 64)
	}
	if looksLikeInteger(s) {
		s += ".0"
	}
	return s
}

func looksLikeInteger(s string) bool {
	for _, r := range s {
		if r != '-' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
