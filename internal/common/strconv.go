package common

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseLeadingInt reads the leading base-10 integer of value and ignores anything after it.
// Values without leading digits, or whose digits overflow int64, yield 0.
func ParseLeadingInt(value string) int64 {
	n, _ := LeadingInt(value)
	return n
}

// LeadingInt is ParseLeadingInt that also reports whether any digits were found.
// Leading whitespace and a single sign are accepted before the digits.
func LeadingInt(value string) (int64, bool) {
	s := strings.TrimLeftFunc(value, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
