package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var weekdayNames = [...]string{
	time.Sunday:    "Chủ Nhật",
	time.Monday:    "Thứ Hai",
	time.Tuesday:   "Thứ Ba",
	time.Wednesday: "Thứ Tư",
	time.Thursday:  "Thứ Năm",
	time.Friday:    "Thứ Sáu",
	time.Saturday:  "Thứ Bảy",
}

// TimeInfo is the local wall-clock time rendered for replies.
type TimeInfo struct {
	At       time.Time
	Time     string // HH:MM:SS
	Date     string // "4 Tháng 3 năm 2025"
	Weekday  string
	Full     string // "Thứ Ba, 4 Tháng 3 2025 lúc 09:30:00"
	Location string
}

// Clock reads time in the configured zone.
type Clock struct {
	loc      *time.Location
	location string
	now      func() time.Time
}

// NewClock loads tz. An unknown zone falls back to UTC.
func NewClock(tz, location string, logger zerolog.Logger) *Clock {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", tz).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}
	return &Clock{loc: loc, location: location, now: time.Now}
}

// Location returns the zone times are rendered in.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the configured zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Info renders the current time.
func (c *Clock) Info() TimeInfo {
	now := c.Now()
	weekday := weekdayNames[now.Weekday()]
	clock := now.Format(time.TimeOnly)
	return TimeInfo{
		At:       now,
		Time:     clock,
		Date:     fmt.Sprintf("%d Tháng %d năm %d", now.Day(), int(now.Month()), now.Year()),
		Weekday:  weekday,
		Full:     fmt.Sprintf("%s, %d Tháng %d %d lúc %s", weekday, now.Day(), int(now.Month()), now.Year(), clock),
		Location: c.location,
	}
}
