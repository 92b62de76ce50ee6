package cohort

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Errors returned by Resolve. Callers distinguish them with errors.Is.
var (
	ErrInvalidFormat = errors.New("cohort label must be in format 'day_month'")
	ErrInvalidDay    = errors.New("invalid day in cohort label")
	ErrUnknownMonth  = errors.New("unknown month in cohort label")
)

// monthNames maps lower-cased month tokens (full names and common three
// letter abbreviations) to calendar months.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// DateRange is an inclusive calendar date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// StartISO returns the start date formatted as YYYY-MM-DD.
func (dr DateRange) StartISO() string {
	return dr.Start.Format("2006-01-02")
}

// EndISO returns the end date formatted as YYYY-MM-DD.
func (dr DateRange) EndISO() string {
	return dr.End.Format("2006-01-02")
}

func (dr DateRange) String() string {
	return dr.StartISO() + ".." + dr.EndISO()
}

// Resolve parses a cohort label like "1_july" or "15_Jul" into the inclusive
// date window [start, start+windowSize-1]. The year is taken from now. Pure,
// no I/O.
func Resolve(label string, windowSize int, now time.Time) (DateRange, error) {
	parts := strings.Split(label, "_")
	if len(parts) != 2 {
		return DateRange{}, fmt.Errorf("parse %q: %w", label, ErrInvalidFormat)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return DateRange{}, fmt.Errorf("parse %q: %w", label, ErrInvalidDay)
	}

	month, ok := monthNames[strings.ToLower(parts[1])]
	if !ok {
		return DateRange{}, fmt.Errorf("parse %q: month %q: %w", label, parts[1], ErrUnknownMonth)
	}

	start := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (e.g. 32_july -> Aug 1); reject those.
	if start.Day() != day || start.Month() != month {
		return DateRange{}, fmt.Errorf("parse %q: day %d out of range: %w", label, day, ErrInvalidDay)
	}

	return DateRange{Start: start, End: start.AddDate(0, 0, windowSize-1)}, nil
}

// GroupMode controls handling of a trailing group shorter than the window size.
type GroupMode int

const (
	// DropIncomplete silently discards a short trailing group. Used by the
	// full pipeline.
	DropIncomplete GroupMode = iota
	// KeepIncomplete processes a short trailing group as-is. Used when the
	// caller supplies an explicit cohort list.
	KeepIncomplete
)

// GroupWindows partitions labels into consecutive windows of size. The first
// member of each window names the window.
func GroupWindows(labels []string, size int, mode GroupMode) [][]string {
	var groups [][]string

	for i := 0; i < len(labels); i += size {
		end := i + size
		if end > len(labels) {
			end = len(labels)
		}

		group := labels[i:end]
		if mode == DropIncomplete && len(group) < size {
			continue
		}

		groups = append(groups, group)
	}

	return groups
}

// SortByDayPrefix orders cohort folder names ascending by their leading
// numeric token. Names without a numeric prefix sort as 0. The sort is stable
// so equal keys keep directory order.
func SortByDayPrefix(folders []string) {
	sort.SliceStable(folders, func(i, j int) bool {
		return dayPrefix(folders[i]) < dayPrefix(folders[j])
	})
}

func dayPrefix(name string) int {
	token, _, _ := strings.Cut(name, "_")

	day, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}

	return day
}
