package report

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var ErrInvalidWeek = errors.New("week must look like 2024-W07")

var weekPattern = regexp.MustCompile(`^(\d{4})-W(\d{1,2})$`)

// Week is a "<year>-W<n>" designator. Week 1 starts on the first Monday on
// or after January 1, which is not the ISO-8601 rule.
type Week struct {
	Year   int
	Number int
}

func ParseWeek(s string) (Week, error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return Week{}, ErrInvalidWeek
	}
	year, _ := strconv.Atoi(m[1])
	number, _ := strconv.Atoi(m[2])
	if year < 1 || number < 1 || number > 53 {
		return Week{}, ErrInvalidWeek
	}
	return Week{Year: year, Number: number}, nil
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

func (w Week) Start() time.Time {
	return WeekStart(w.Year, w.Number)
}

// End is the last day of the week, inclusive.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, 6)
}

func WeekStart(year, week int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(jan1.Weekday()) + 7) % 7
	return jan1.AddDate(0, 0, offset+(week-1)*7)
}

// MondayOf returns the Monday of t's calendar week as a UTC date.
func MondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
