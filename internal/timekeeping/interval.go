package timekeeping

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Interval is a calendar offset such as an output or file interval.
type Interval struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// ParseInterval parses the MPAS interval forms "YYYY-MM-DD_hh:mm:ss",
// "MM-DD_hh:mm:ss", "DD_hh:mm:ss", "YYYY-MM-DD" and "hh:mm:ss".
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, eris.New("timekeeping: empty interval string")
	}

	var datePart, timePart string
	switch {
	case strings.Contains(s, "_"):
		datePart, timePart, _ = strings.Cut(s, "_")
	case strings.Contains(s, ":"):
		timePart = s
	default:
		datePart = s
	}

	var iv Interval
	if datePart != "" {
		parts := strings.Split(datePart, "-")
		var fields []*int
		switch len(parts) {
		case 1:
			fields = []*int{&iv.Days}
		case 2:
			fields = []*int{&iv.Months, &iv.Days}
		case 3:
			fields = []*int{&iv.Years, &iv.Months, &iv.Days}
		default:
			return Interval{}, eris.Errorf("timekeeping: malformed interval %q", s)
		}
		for i, p := range parts {
			v, err := atoi(p)
			if err != nil {
				return Interval{}, eris.Wrapf(err, "timekeeping: malformed interval %q", s)
			}
			*fields[i] = v
		}
	}

	if timePart != "" {
		h, m, sec, err := parseClock(timePart)
		if err != nil {
			return Interval{}, eris.Wrapf(err, "timekeeping: malformed interval %q", s)
		}
		iv.Hours, iv.Minutes, iv.Seconds = h, m, sec
	}
	return iv, nil
}

// IsZero reports whether iv has no extent.
func (iv Interval) IsZero() bool {
	return iv == Interval{}
}

// String formats iv as YYYY-MM-DD_hh:mm:ss.
func (iv Interval) String() string {
	return fmt.Sprintf("%04d-%02d-%02d_%02d:%02d:%02d", iv.Years, iv.Months, iv.Days, iv.Hours, iv.Minutes, iv.Seconds)
}
