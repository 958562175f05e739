package planshare

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePath reads a 1-based dotted item path such as "2.1" into the 0-based
// index path used by plan.Plan.ItemAt.
func ParsePath(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty item path")
	}
	parts := strings.Split(s, ".")
	path := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid item path %q: each segment must be a positive number", s)
		}
		path = append(path, n-1)
	}
	return path, nil
}

// FormatPath renders an index path the way users type it, e.g. "1.2".
func FormatPath(path []int) string {
	parts := make([]string, len(path))
	for i, idx := range path {
		parts[i] = strconv.Itoa(idx + 1)
	}
	return strings.Join(parts, ".")
}
