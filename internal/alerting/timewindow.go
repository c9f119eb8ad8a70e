package alerting

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

const clockLayout = "15:04"

var locationCache sync.Map // timezone name -> *time.Location

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if loc, ok := locationCache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	locationCache.Store(name, loc)
	return loc, nil
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// isoWeekday numbers days from 0 = Monday to 6 = Sunday.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// windowContains reports whether now falls inside tw. Both ends are
// inclusive at minute resolution. When start is after end the window wraps
// past midnight. An empty day list means every day.
func windowContains(tw *entities.TimeWindow, now time.Time) (bool, error) {
	loc, err := loadLocation(tw.Timezone)
	if err != nil {
		return false, err
	}
	start, err := parseClock(tw.StartTime)
	if err != nil {
		return false, err
	}
	end, err := parseClock(tw.EndTime)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	if len(tw.Days) > 0 && !slices.Contains(tw.Days, isoWeekday(local)) {
		return false, nil
	}

	minute := local.Hour()*60 + local.Minute()
	if start <= end {
		return minute >= start && minute <= end, nil
	}
	return minute >= start || minute <= end, nil
}
