package scheduler

import (
	"fmt"
	"sort"
	"time"

	"reelcast/internal/config"
)

type slotClock struct {
	hour   int
	minute int
}

func parseSlots(values []string) ([]slotClock, error) {
	slots := make([]slotClock, 0, len(values))
	for _, value := range values {
		hour, minute, err := config.ParseSlot(value)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slotClock{hour: hour, minute: minute})
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("at least one slot is required")
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].hour != slots[j].hour {
			return slots[i].hour < slots[j].hour
		}
		return slots[i].minute < slots[j].minute
	})
	return slots, nil
}

// upcoming lists slot times strictly after now and no later than
// now+days, in order.
func upcoming(slots []slotClock, now time.Time, days int) []time.Time {
	now = now.UTC()
	if days < 1 {
		days = 1
	}
	horizon := now.Add(time.Duration(days) * 24 * time.Hour)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, 0, len(slots)*(days+1))
	for day := 0; day <= days; day++ {
		base := midnight.AddDate(0, 0, day)
		for _, slot := range slots {
			t := base.Add(time.Duration(slot.hour)*time.Hour + time.Duration(slot.minute)*time.Minute)
			if !t.After(now) || t.After(horizon) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// nextSlots returns the next n slot times after now, wrapping into
// following days as needed.
func nextSlots(slots []slotClock, now time.Time, n int) []time.Time {
	if n <= 0 || len(slots) == 0 {
		return nil
	}
	days := n/len(slots) + 1
	all := upcoming(slots, now, days)
	if len(all) > n {
		all = all[:n]
	}
	return all
}
