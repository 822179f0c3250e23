package app

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestSlotGrid(t *testing.T) {
	grid := slotGrid(8, 20, 30)
	if len(grid) != 24 {
		t.Fatalf("expected 24 slots, got %d", len(grid))
	}
	if grid[0] != "08:00" {
		t.Fatalf("first slot: %s", grid[0])
	}
	if grid[len(grid)-1] != "19:30" {
		t.Fatalf("last slot: %s", grid[len(grid)-1])
	}
	if !slices.IsSorted(grid) {
		t.Fatal("grid not in ascending order")
	}
}

func TestFreeSlotsRemovesBusyStart(t *testing.T) {
	grid := slotGrid(8, 20, 30)
	busy := []Interval{{
		Start: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC),
	}}

	free := freeSlots(grid, busy, time.UTC)
	if len(free) != 23 {
		t.Fatalf("expected 23 slots, got %d", len(free))
	}
	if slices.Contains(free, "10:00") {
		t.Fatal("busy slot 10:00 still offered")
	}
	if !slices.Contains(free, "10:30") {
		t.Fatal("10:30 should still be free: occupancy is by exact start")
	}
	if !slices.IsSorted(free) {
		t.Fatal("slots not in ascending order")
	}
}

func TestFreeSlotsNormalizesTimezone(t *testing.T) {
	grid := slotGrid(8, 20, 30)
	// 09:00 UTC == 10:00 in a +1 zone.
	plusOne := time.FixedZone("plus-one", 3600)
	busy := []Interval{{Start: time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)}}

	free := freeSlots(grid, busy, plusOne)
	if slices.Contains(free, "10:00") {
		t.Fatal("expected 10:00 occupied in studio timezone")
	}
	if !slices.Contains(free, "09:00") {
		t.Fatal("09:00 should be free in studio timezone")
	}
}

func TestAvailableSlotsFailsClosed(t *testing.T) {
	cal := &fakeCalendar{listErr: errors.New("calendar unreachable")}
	a := newTestApp(newFakeStore(), cal, &fakeNotifier{})

	if _, err := a.AvailableSlots(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error when calendar is unreachable, got all-free slots")
	}
}

func TestAvailableSlotsAllFree(t *testing.T) {
	a := newTestApp(newFakeStore(), &fakeCalendar{}, &fakeNotifier{})

	slots, err := a.AvailableSlots(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 24 {
		t.Fatalf("expected full grid, got %d slots", len(slots))
	}
}
