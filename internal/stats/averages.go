package stats

import (
	"time"

	"github.com/tverberg/punch/internal/model"
)

// WeekdayAverage summarizes one weekday bucket across the range.
type WeekdayAverage struct {
	Days    int                      `json:"days"`
	PerDay  time.Duration            `json:"per_day"`
	PerTask map[string]time.Duration `json:"per_task"`
}

// Averages are the derived statistics over an aggregated day range.
// PerWeekday is indexed 0=Sunday through 6=Saturday by the local date.
type Averages struct {
	ActiveDays int                      `json:"active_days"`
	PerDay     time.Duration            `json:"per_day"`
	PerTask    map[string]time.Duration `json:"per_task"`
	PerWeekday [7]WeekdayAverage        `json:"per_weekday"`
}

// ComputeAverages derives per-day, per-task, and day-of-week averages from a
// day-data set. With excludeZeroDays, days with a zero total drop out of
// every denominator; each weekday bucket is normalized independently by its
// own included-day count. All divisions are guarded: no active days means a
// zero average, never NaN.
func ComputeAverages(days []model.DayData, excludeZeroDays bool) Averages {
	avg := Averages{PerTask: make(map[string]time.Duration)}

	var total time.Duration
	taskTotals := make(map[string]time.Duration)
	var weekdayTotals [7]time.Duration
	weekdayTaskTotals := [7]map[string]time.Duration{}

	for _, day := range days {
		if excludeZeroDays && day.Total == 0 {
			continue
		}

		avg.ActiveDays++
		total += day.Total
		for taskID, ms := range day.ByTask {
			taskTotals[taskID] += ms
		}

		date, err := time.ParseInLocation(dayFormat, day.Date, time.Local)
		if err != nil {
			continue
		}
		wd := int(date.Weekday())
		avg.PerWeekday[wd].Days++
		weekdayTotals[wd] += day.Total
		if weekdayTaskTotals[wd] == nil {
			weekdayTaskTotals[wd] = make(map[string]time.Duration)
		}
		for taskID, ms := range day.ByTask {
			weekdayTaskTotals[wd][taskID] += ms
		}
	}

	if avg.ActiveDays > 0 {
		avg.PerDay = total / time.Duration(avg.ActiveDays)
		for taskID, ms := range taskTotals {
			avg.PerTask[taskID] = ms / time.Duration(avg.ActiveDays)
		}
	}

	for wd := range avg.PerWeekday {
		bucket := &avg.PerWeekday[wd]
		bucket.PerTask = make(map[string]time.Duration)
		if bucket.Days == 0 {
			continue
		}
		bucket.PerDay = weekdayTotals[wd] / time.Duration(bucket.Days)
		for taskID, ms := range weekdayTaskTotals[wd] {
			bucket.PerTask[taskID] = ms / time.Duration(bucket.Days)
		}
	}

	return avg
}
