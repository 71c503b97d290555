package transform

import (
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

var monthNames = []string{"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimeDimensionProcessor derives calendar-day members
type TimeDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewTimeDimensionProcessor creates a new TimeDimensionProcessor
func NewTimeDimensionProcessor(logger *utils.ETLLogger) *TimeDimensionProcessor {
	return &TimeDimensionProcessor{logger: logger}
}

// Process registers every record's date and returns the members to insert
func (p *TimeDimensionProcessor) Process(records []*models.CanonicalRecord, existing []models.TimeDimension) ([]models.TimeDimension, map[string]int64, int) {
	registry := newKeyRegistry()
	for _, member := range existing {
		registry.seed(member.NaturalKey(), member.Key)
	}

	dates := make(map[string]time.Time)
	for _, rec := range records {
		nk := rec.DateKey()
		dates[nk] = rec.Date
		registry.want(nk)
	}

	fresh := registry.assign()
	lookup := registry.lookup()

	members := make([]models.TimeDimension, 0, len(fresh))
	for _, nk := range fresh {
		member := NewTimeMember(dates[nk])
		member.Key = lookup[nk]
		members = append(members, member)
	}

	p.logger.Debug("time dimension processed", "referenced", len(dates), "new", len(fresh))
	return members, lookup, len(fresh)
}

// NewTimeMember computes the calendar attributes of a day
func NewTimeMember(date time.Time) models.TimeDimension {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	// ISO weekday: Monday=1 ... Sunday=7
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	_, week := day.ISOWeek()

	return models.TimeDimension{
		FullDate:   day,
		Year:       day.Year(),
		Quarter:    (int(day.Month())-1)/3 + 1,
		Month:      int(day.Month()),
		MonthName:  monthNames[day.Month()-1],
		DayOfMonth: day.Day(),
		DayOfWeek:  weekday,
		DayName:    dayNames[weekday-1],
		WeekOfYear: week,
		IsWeekend:  weekday >= 6,
	}
}
