package app

import (
	"context"
	"fmt"
	"time"
)

// AvailableSlots returns the bookable HH:MM start times for a day, in
// ascending order. It fails closed when the calendar is unreachable:
// offering a slot that is actually busy is worse than erroring out.
func (a *App) AvailableSlots(ctx context.Context, day time.Time) ([]string, error) {
	busy, err := a.calendar.ListBusyIntervals(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}
	grid := slotGrid(a.cfg.MinHour, a.cfg.MaxHour, a.cfg.SlotMinutes)
	return freeSlots(grid, busy, a.loc), nil
}

// slotGrid expands the business-hours window into candidate start
// times, e.g. 8..20 stepped by 30 minutes gives 08:00 .. 19:30.
func slotGrid(minHour, maxHour, stepMinutes int) []string {
	var slots []string
	for hour := minHour; hour < maxHour; hour++ {
		for minute := 0; minute < 60; minute += stepMinutes {
			slots = append(slots, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return slots
}

// freeSlots removes every grid slot whose start matches a busy event's
// start in the studio timezone. Occupancy is by exact start time, not
// interval overlap: the studio books uniform back-to-back slots.
func freeSlots(grid []string, busy []Interval, loc *time.Location) []string {
	occupied := make(map[string]struct{}, len(busy))
	for _, iv := range busy {
		occupied[iv.Start.In(loc).Format("15:04")] = struct{}{}
	}

	free := make([]string, 0, len(grid))
	for _, slot := range grid {
		if _, ok := occupied[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free
}
