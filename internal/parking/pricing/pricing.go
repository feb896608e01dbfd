package pricing

import "time"

// ChargeableHours rounds the duration up to whole hours, charging a
// minimum of one hour even for sub-hour windows.
func ChargeableHours(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}

// Amount computes the charge in cents for a parking duration at the given
// hourly rate. Called with the expected duration at reservation time and
// again with the actual duration at completion; the later result
// overwrites the estimate.
func Amount(d time.Duration, hourlyCents int64) int64 {
	return ChargeableHours(d) * hourlyCents
}
