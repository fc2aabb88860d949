package domain

import (
	"sort"
	"time"
)

// DayWindow is one recurring opening window: a weekday plus opening and
// closing times expressed as minutes from midnight.
type DayWindow struct {
	Day   time.Weekday
	Open  int
	Close int
}

const minutesPerDay = 24 * 60

// Validate checks the window lies inside a single day with open before close.
func (w DayWindow) Validate() error {
	if w.Open < 0 || w.Close > minutesPerDay || w.Open >= w.Close {
		return ErrInvalidInterval
	}
	return nil
}

// ExpandWeekly produces concrete slot intervals of the service's duration
// inside every matching window between from and from+horizon. Slots never
// cross a window boundary, the last slot of a window ends at or before close.
// Results are ordered by start ascending.
func ExpandWeekly(svc Service, windows []DayWindow, from time.Time, horizon time.Duration) ([][2]time.Time, error) {
	if svc.DurationMinutes < 1 {
		return nil, ErrInvalidDuration
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}

	from = from.UTC()
	until := from.Add(horizon)
	step := svc.Duration()

	var out [][2]time.Time
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for ; day.Before(until); day = day.AddDate(0, 0, 1) {
		for _, w := range windows {
			if w.Day != day.Weekday() {
				continue
			}
			open := day.Add(time.Duration(w.Open) * time.Minute)
			close := day.Add(time.Duration(w.Close) * time.Minute)
			for start := open; !start.Add(step).After(close); start = start.Add(step) {
				if start.Before(from) || start.After(until) {
					continue
				}
				out = append(out, [2]time.Time{start, start.Add(step)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].Before(out[j][0]) })
	return out, nil
}
