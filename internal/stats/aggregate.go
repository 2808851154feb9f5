// Package stats turns raw sessions into calendar-aligned analytics: local
// day buckets, hierarchy-attributed rollups, and derived averages. Every
// function is pure over its inputs; "now" is always a parameter so open
// intervals aggregate deterministically.
package stats

import (
	"time"

	"github.com/tverberg/punch/internal/model"
)

const dayFormat = "2006-01-02"

// Aggregate buckets every session interval into local calendar days over the
// inclusive range [from, to]. Day windows are [local midnight, next local
// midnight) in from's location, stepped with AddDate so DST transitions keep
// the windows aligned to real midnights. Each interval contributes its exact
// overlap to every day it touches; open intervals end at now. Days without
// activity appear with a zero total, so a 7-day range always yields 7 entries.
func Aggregate(sessions []model.Session, from, to time.Time, now time.Time) []model.DayData {
	loc := from.Location()
	day := midnight(from, loc)
	last := midnight(to, loc)

	var days []model.DayData
	for !day.After(last) {
		next := day.AddDate(0, 0, 1)
		bucket := model.DayData{
			Date:   day.Format(dayFormat),
			ByTask: make(map[string]time.Duration),
		}

		for _, session := range sessions {
			if session.TaskID == "" {
				continue
			}
			for _, iv := range session.Intervals {
				end := now
				if iv.End != nil {
					end = *iv.End
				}
				overlap := model.Overlap(iv.Start, end, day, next)
				if overlap <= 0 {
					continue
				}
				bucket.ByTask[session.TaskID] += overlap
				bucket.Total += overlap
			}
		}

		days = append(days, bucket)
		day = next
	}
	return days
}

func midnight(t time.Time, loc *time.Location) time.Time {
	year, month, dayOfMonth := t.In(loc).Date()
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, loc)
}
