package utils

import (
	"fmt"
	"time"
)

// FormatPrettyTime renders a timestamp the way the message list shows it:
// "Today 15:04", "Yesterday 15:04", or a date for anything older.
func FormatPrettyTime(t time.Time) string {
	now := time.Now()
	year, month, day := t.Date()
	nowYear, nowMonth, nowDay := now.Date()

	timePart := t.Format("15:04")

	if year == nowYear && month == nowMonth && day == nowDay {
		return fmt.Sprintf("Today %s", timePart)
	}

	yesterday := now.AddDate(0, 0, -1)
	if year == yesterday.Year() && month == yesterday.Month() && day == yesterday.Day() {
		return fmt.Sprintf("Yesterday %s", timePart)
	}

	if year == nowYear {
		return fmt.Sprintf("%s %d %s", t.Format("Jan"), day, timePart)
	}

	return fmt.Sprintf("%d %s %02d %s", year, t.Format("Jan"), day, timePart)
}
