package posting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDate converts a DD/MM/YYYY source date to UTC midnight. Out-of-range
// day or month values roll over the way time.Date normalizes them.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, s)
	}
	var nums [3]int
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if !isDigits(part) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, s)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %w", ErrDateParse, s, err)
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// ParseDeadline parses a lastDate value, returning nil when it is absent or
// malformed.
func ParseDeadline(s string) *time.Time {
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
