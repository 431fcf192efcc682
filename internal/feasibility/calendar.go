package feasibility

import (
	"slices"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

// Calendar does business-day arithmetic in a platform's timezone.
type Calendar struct {
	loc             *time.Location
	leadTime        time.Duration
	excludeWeekends bool
	weekend         []time.Weekday
}

func NewCalendar(ps domain.PlatformSettings) (Calendar, error) {
	tz := ps.Timezone
	if tz == "" {
		tz = domain.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Calendar{}, domain.Validation("unknown timezone %q", tz)
	}
	lead := ps.MinimumLeadHours
	if lead < 0 {
		lead = 0
	}
	weekend := ps.WeekendDays
	if ps.ExcludeWeekends && len(weekend) == 0 {
		weekend = []time.Weekday{time.Saturday, time.Sunday}
	}
	return Calendar{
		loc:             loc,
		leadTime:        time.Duration(lead) * time.Hour,
		excludeWeekends: ps.ExcludeWeekends,
		weekend:         weekend,
	}, nil
}

// Date returns the calendar date of t in the calendar's timezone. Event
// dates are stored as midnight UTC, so their UTC date is taken as is.
func (c Calendar) Date(t time.Time) time.Time {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	}
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

func (c Calendar) IsBusinessDay(d time.Time) bool {
	if !c.excludeWeekends {
		return true
	}
	return !slices.Contains(c.weekend, d.In(c.loc).Weekday())
}

// ReadyDate is the first date an asset needing days business days of work
// can be used: the lead window start rolled onto a business day, plus days
// business days.
func (c Calendar) ReadyDate(now time.Time, days int) time.Time {
	d := c.Date(now.In(c.loc).Add(c.leadTime))
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	for range days {
		d = d.AddDate(0, 0, 1)
		for !c.IsBusinessDay(d) {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}
