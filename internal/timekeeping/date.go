// Package timekeeping parses MPAS date and interval strings
// ("0001-01-01_00:00:00", "0000-01-00_00:00:00") and turns them into
// absolute points on the analysis time axis.
package timekeeping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Date is a calendar date and time of day as written by MPAS.
// Years may be small (0001) or larger than 9999.
type Date struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// ParseDate parses "YYYY-MM-DD_hh:mm:ss" and its truncated forms
// ("YYYY-MM-DD_hh:mm", "YYYY-MM-DD_hh", "YYYY-MM-DD", "YYYY-MM", "YYYY").
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, eris.New("timekeeping: empty date string")
	}

	datePart, timePart, _ := strings.Cut(s, "_")
	ymd := strings.Split(datePart, "-")
	if len(ymd) > 3 {
		return Date{}, eris.Errorf("timekeeping: malformed date %q", s)
	}

	d := Date{Month: 1, Day: 1}
	fields := []*int{&d.Year, &d.Month, &d.Day}
	for i, f := range ymd {
		v, err := atoi(f)
		if err != nil {
			return Date{}, eris.Wrapf(err, "timekeeping: malformed date %q", s)
		}
		*fields[i] = v
	}

	if timePart != "" {
		h, m, sec, err := parseClock(timePart)
		if err != nil {
			return Date{}, eris.Wrapf(err, "timekeeping: malformed date %q", s)
		}
		d.Hour, d.Minute, d.Second = h, m, sec
	}

	if err := d.validate(); err != nil {
		return Date{}, eris.Wrapf(err, "timekeeping: invalid date %q", s)
	}
	return d, nil
}

// MustParseDate is ParseDate for constants known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime converts t back into a Date, removing yearOffset.
func FromTime(t time.Time, yearOffset int) Date {
	t = t.UTC()
	return Date{
		Year:   t.Year() - yearOffset,
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

func (d Date) validate() error {
	switch {
	case d.Year < 0:
		return eris.Errorf("year %d out of range", d.Year)
	case d.Month < 1 || d.Month > 12:
		return eris.Errorf("month %d out of range", d.Month)
	case d.Day < 1 || d.Day > daysIn(d.Year, d.Month):
		return eris.Errorf("day %d out of range", d.Day)
	case d.Hour < 0 || d.Hour > 23:
		return eris.Errorf("hour %d out of range", d.Hour)
	case d.Minute < 0 || d.Minute > 59:
		return eris.Errorf("minute %d out of range", d.Minute)
	case d.Second < 0 || d.Second > 59:
		return eris.Errorf("second %d out of range", d.Second)
	}
	return nil
}

// ToTime returns the absolute point for d, with yearOffset added to the
// year so that model years land in a convenient calendar range.
func (d Date) ToTime(yearOffset int) time.Time {
	return time.Date(d.Year+yearOffset, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

// Add advances d by iv.
func (d Date) Add(iv Interval) Date {
	t := d.ToTime(0).AddDate(iv.Years, iv.Months, iv.Days)
	t = t.Add(time.Duration(iv.Hours)*time.Hour +
		time.Duration(iv.Minutes)*time.Minute +
		time.Duration(iv.Seconds)*time.Second)
	return FromTime(t, 0)
}

// WithMonthDay returns d moved to the given month and day of the same year,
// keeping the time of day.
func (d Date) WithMonthDay(month, day int) Date {
	d.Month, d.Day = month, day
	return d
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	a := [...]int{d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second}
	b := [...]int{o.Year, o.Month, o.Day, o.Hour, o.Minute, o.Second}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// String formats d as YYYY-MM-DD_hh:mm:ss.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d_%02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

// YearStart is the first instant of year y in MPAS notation.
func YearStart(y int) string {
	return fmt.Sprintf("%04d-01-01_00:00:00", y)
}

// YearEnd is the last second of year y in MPAS notation.
func YearEnd(y int) string {
	return fmt.Sprintf("%04d-12-31_23:59:59", y)
}

func parseClock(s string) (h, m, sec int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, 0, 0, eris.Errorf("malformed time of day %q", s)
	}
	vals := [3]int{}
	for i, p := range parts {
		v, err := atoi(p)
		if err != nil {
			return 0, 0, 0, err
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func atoi(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, eris.Errorf("not an integer: %q", s)
	}
	return v, nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
