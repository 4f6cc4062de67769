package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidDuration is returned when a numeric fragment of a duration
// string cannot be read as an integer.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDuration converts a compact duration string such as "PT1H10M10S" into
// whole seconds.
//
// The string is split on every non-digit and the numeric fragments are
// weighted by position from the right: seconds, minutes, hours and so on,
// each worth 60 times the previous one. The unit letters themselves are
// ignored, so "PT1H10M10S" is 4210 while "PT2M" is 120.
func ParseDuration(s string) (uint64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })

	var total, weight uint64 = 0, 1
	for i := len(fields) - 1; i >= 0; i-- {
		n, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %v", ErrInvalidDuration, s, err)
		}
		total += n * weight
		weight *= 60
	}
	return total, nil
}
