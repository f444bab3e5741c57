package utils

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`(\d+)([smhdw])`)

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 604800,
}

var ErrBadDuration = errors.New("invalid duration")

// ParseDuration converts a suffixed duration string such as "30m", "1h30m"
// or "2d12h" into a time.Duration. Segments are summed.
func ParseDuration(value string) (time.Duration, error) {
	matches := durationPattern.FindAllStringSubmatch(value, -1)
	if len(matches) == 0 {
		return 0, ErrBadDuration
	}

	consumed := 0
	var total int64
	for _, match := range matches {
		consumed += len(match[0])
		amount, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return 0, ErrBadDuration
		}
		total += amount * unitSeconds[match[2]]
	}
	// Reject strings with junk between valid segments, e.g. "1h squid 30m".
	if consumed != len(value) {
		return 0, ErrBadDuration
	}
	if total <= 0 {
		return 0, ErrBadDuration
	}
	return time.Duration(total) * time.Second, nil
}
