// Package duration converts between scheduler duration strings ([D-]HH:MM:SS) and
// seconds.
package duration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// ErrMalformedDuration is wrapped by every parse failure.
var ErrMalformedDuration = errors.New("malformed duration")

// Parse returns the number of seconds in a [D-]HH:MM:SS string. Empty input is 0.
func Parse(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}

	var days int64
	rest := text
	if idx := strings.Index(text, "-"); idx >= 0 {
		d, err := parseField(text[:idx])
		if err != nil {
			return 0, errors.Wrapf(ErrMalformedDuration, "%q: bad day count", text)
		}
		days = d
		rest = text[idx+1:]
	}

	fields := strings.Split(rest, ":")
	if len(fields) != 3 {
		return 0, errors.Wrapf(ErrMalformedDuration, "%q: expected HH:MM:SS, got %d fields", text, len(fields))
	}

	var hms [3]int64
	for i, f := range fields {
		v, err := parseField(f)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformedDuration, "%q: field %q is not numeric", text, f)
		}
		hms[i] = v
	}

	return days*secondsPerDay + hms[0]*secondsPerHour + hms[1]*secondsPerMinute + hms[2], nil
}

// parseField accepts digits only; strconv alone would let signs through.
func parseField(s string) (int64, error) {
	if s == "" {
		return 0, ErrMalformedDuration
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformedDuration
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// Format renders seconds for people: "3s", "4m 0s", "1h 0m 12s", "2d 0h 0m 5s".
// Units start at the largest non-zero one and every smaller unit follows it.
func Format(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / secondsPerDay
	hours := (seconds / secondsPerHour) % 24
	minutes := (seconds / secondsPerMinute) % 60
	secs := seconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatCanonical renders seconds as zero padded HH:MM:SS, prefixed with "D-" once
// the value reaches a day. This is the form Increment produces.
func FormatCanonical(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / secondsPerDay
	hours := (seconds / secondsPerHour) % 24
	minutes := (seconds / secondsPerMinute) % 60
	secs := seconds % 60

	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Increment adds one second to text and returns it in canonical form.
func Increment(text string) (string, error) {
	s, err := Parse(text)
	if err != nil {
		return text, err
	}
	return FormatCanonical(s + 1), nil
}

// Display is Format for table cells: empty, zero and unparseable values show as N/A.
func Display(text string) string {
	s, err := Parse(text)
	if err != nil || s == 0 {
		return "N/A"
	}
	return Format(s)
}
