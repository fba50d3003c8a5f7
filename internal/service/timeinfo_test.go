package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestClockInfo(t *testing.T) {
	c := NewClock("UTC", "Khánh Hòa, Việt Nam", zerolog.Nop())
	c.now = func() time.Time { return time.Date(2025, 3, 4, 9, 5, 7, 0, time.UTC) }

	info := c.Info()

	assert.Equal(t, "09:05:07", info.Time)
	assert.Equal(t, "Thứ Ba", info.Weekday)
	assert.Equal(t, "4 Tháng 3 năm 2025", info.Date)
	assert.Equal(t, "Thứ Ba, 4 Tháng 3 2025 lúc 09:05:07", info.Full)
	assert.Equal(t, "Khánh Hòa, Việt Nam", info.Location)
}

func TestClockSundayAndFallback(t *testing.T) {
	c := NewClock("Not/AZone", "X", zerolog.Nop())
	c.now = func() time.Time { return time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.UTC, c.Location())
	assert.Equal(t, "Chủ Nhật", c.Info().Weekday)
}
