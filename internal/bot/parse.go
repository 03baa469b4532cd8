package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDaysArg extracts an optional day count from a command argument
// string, bounded by [1, maxDays]. An empty argument yields the default.
func ParseDaysArg(args string, def, maxDays int) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return def, nil
	}
	days, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || days < 1 || days > maxDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxDays)
	}
	return days, nil
}
