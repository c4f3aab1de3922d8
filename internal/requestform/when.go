package requestform

import (
	"fmt"
	"strings"
	"time"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
)

// Layouts accepted by ParseWhen, besides RFC 3339.
var whenLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseWhen reads a date the way it is typed at the prompt: "now", an
// offset like "+2h" from now, RFC 3339, or a local "2006-01-02 15:04".
func ParseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return time.Time{}, fmt.Errorf("%w: empty date", kerrors.ErrInvalidInput)
	case strings.EqualFold(s, "now"):
		return now, nil
	case strings.HasPrefix(s, "+"):
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", kerrors.ErrInvalidInput, err)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", kerrors.ErrInvalidInput, s)
}
