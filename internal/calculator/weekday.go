package calculator

import "time"

// priorWeekOffsets maps the reference weekday to the number of calendar days
// back to the close of the prior week. Business rule, keep literal:
// Monday 3, Friday 7, Sunday 2, Saturday weekday-4, Tuesday..Thursday weekday+3
// (weekday counted Monday=0).
var priorWeekOffsets = map[time.Weekday]int{
	time.Monday:    3,
	time.Tuesday:   4,
	time.Wednesday: 5,
	time.Thursday:  6,
	time.Friday:    7,
	time.Saturday:  1,
	time.Sunday:    2,
}

// PriorWeekOffset returns how many days before a reference day of weekday wd
// the prior week's last session falls. Every entry lands on a Friday.
func PriorWeekOffset(wd time.Weekday) int {
	return priorWeekOffsets[wd]
}
