package vaillant

import (
	"sort"
	"time"
)

const (
	minutesPerDay  = 24 * 60
	minutesPerWeek = 7 * minutesPerDay
)

// weekMinute converts a wall-clock time into minutes from Monday 00:00,
// the unit the schedule timetable is expressed in.
func weekMinute(t time.Time) int {
	// time.Weekday counts from Sunday; the timetable counts from Monday.
	day := (int(t.Weekday()) + 6) % 7
	return day*minutesPerDay + t.Hour()*60 + t.Minute()
}

// ActiveZone returns the zone scheduled right now, or nil if the program
// has no timetable or the active slot references an unknown zone.
func (p *Program) ActiveZone() *Zone {
	return p.ActiveZoneAt(time.Now())
}

// ActiveZoneAt returns the zone scheduled at the given time. The active
// slot is the last one starting at or before the current week minute; a
// time before the week's first slot wraps around to the last slot of the
// previous week.
func (p *Program) ActiveZoneAt(t time.Time) *Zone {
	if len(p.Timetable) == 0 {
		return nil
	}

	slots := p.sortedTimetable()
	now := weekMinute(t)

	active := slots[len(slots)-1]
	for _, slot := range slots {
		if slot.MOffset > now {
			break
		}
		active = slot
	}

	return p.zoneByID(active.ID)
}

// TimeslotsForToday returns today's slots in order. When the day does not
// begin with its own slot, the slot carried over from the previous day is
// prepended, re-based to the day's start, so the result always covers the
// whole day.
func (p *Program) TimeslotsForToday() []TimeSlot {
	return p.TimeslotsForDay(time.Now())
}

// TimeslotsForDay returns the slots covering the day containing t.
func (p *Program) TimeslotsForDay(t time.Time) []TimeSlot {
	if len(p.Timetable) == 0 {
		return nil
	}

	slots := p.sortedTimetable()
	day := (int(t.Weekday()) + 6) % 7
	dayStart := day * minutesPerDay
	dayEnd := dayStart + minutesPerDay

	var result []TimeSlot
	carried := slots[len(slots)-1]
	for _, slot := range slots {
		if slot.MOffset < dayStart {
			carried = slot
			continue
		}
		if slot.MOffset >= dayEnd {
			break
		}
		result = append(result, slot)
	}

	if len(result) == 0 || result[0].MOffset != dayStart {
		padded := TimeSlot{ID: carried.ID, MOffset: dayStart}
		result = append([]TimeSlot{padded}, result...)
	}

	return result
}

// sortedTimetable returns the timetable ordered by offset. The API usually
// delivers it sorted already; sorting here keeps the zone resolution
// correct regardless.
func (p *Program) sortedTimetable() []TimeSlot {
	slots := make([]TimeSlot, len(p.Timetable))
	copy(slots, p.Timetable)
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].MOffset < slots[j].MOffset
	})
	return slots
}

// zoneByID resolves a zone referenced from the timetable.
func (p *Program) zoneByID(id int) *Zone {
	for i := range p.Zones {
		if p.Zones[i].ID == id {
			zone := p.Zones[i]
			return &zone
		}
	}
	return nil
}
