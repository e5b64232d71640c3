package vaillant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weeklyProgram schedules night (zone 1) from 22:00 to 07:00 and comfort
// (zone 0) during the day, every day of the week.
func weeklyProgram() *Program {
	p := &Program{
		ID:       "program_id",
		Name:     "Default",
		Selected: true,
		Zones: []Zone{
			{ID: 0, Name: "Comfort", Temp: 21},
			{ID: 1, Name: "Night", Temp: 17},
		},
	}
	for day := 0; day < 7; day++ {
		start := day * minutesPerDay
		p.Timetable = append(p.Timetable,
			TimeSlot{ID: 1, MOffset: start},        // 00:00
			TimeSlot{ID: 0, MOffset: start + 420},  // 07:00
			TimeSlot{ID: 1, MOffset: start + 1320}, // 22:00
		)
	}
	return p
}

func TestProgram_ActiveZoneAt(t *testing.T) {
	program := weeklyProgram()

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"monday before wake-up", time.Date(2021, 11, 22, 6, 59, 0, 0, time.UTC), "Night"},
		{"monday at wake-up", time.Date(2021, 11, 22, 7, 0, 0, 0, time.UTC), "Comfort"},
		{"monday midnight", time.Date(2021, 11, 22, 0, 0, 0, 0, time.UTC), "Night"},
		{"tuesday afternoon", time.Date(2021, 11, 23, 15, 30, 0, 0, time.UTC), "Comfort"},
		{"sunday late evening", time.Date(2021, 11, 28, 23, 59, 0, 0, time.UTC), "Night"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone := program.ActiveZoneAt(tt.at)
			require.NotNil(t, zone)
			assert.Equal(t, tt.want, zone.Name)
		})
	}

	t.Run("before the first slot wraps to the week's last", func(t *testing.T) {
		program := &Program{
			Zones: []Zone{{ID: 0, Name: "Comfort"}, {ID: 1, Name: "Night"}},
			Timetable: []TimeSlot{
				{ID: 0, MOffset: 420},
				{ID: 1, MOffset: 1320},
			},
		}

		// Monday 00:00 precedes the first slot, so Sunday night's zone is
		// still in effect.
		zone := program.ActiveZoneAt(time.Date(2021, 11, 22, 0, 0, 0, 0, time.UTC))
		require.NotNil(t, zone)
		assert.Equal(t, "Night", zone.Name)
	})

	t.Run("empty timetable has no active zone", func(t *testing.T) {
		program := &Program{Zones: []Zone{{ID: 0}}}
		assert.Nil(t, program.ActiveZoneAt(time.Now()))
	})

	t.Run("slot referencing an unknown zone", func(t *testing.T) {
		program := &Program{
			Zones:     []Zone{{ID: 0, Name: "Comfort"}},
			Timetable: []TimeSlot{{ID: 9, MOffset: 0}},
		}
		assert.Nil(t, program.ActiveZoneAt(time.Now()))
	})

	t.Run("unsorted timetable still resolves", func(t *testing.T) {
		program := &Program{
			Zones: []Zone{{ID: 0, Name: "Comfort"}, {ID: 1, Name: "Night"}},
			Timetable: []TimeSlot{
				{ID: 1, MOffset: 1320},
				{ID: 0, MOffset: 420},
				{ID: 1, MOffset: 0},
			},
		}

		zone := program.ActiveZoneAt(time.Date(2021, 11, 22, 12, 0, 0, 0, time.UTC))
		require.NotNil(t, zone)
		assert.Equal(t, "Comfort", zone.Name)
	})
}

func TestProgram_TimeslotsForDay(t *testing.T) {
	t.Run("day starting with its own slot", func(t *testing.T) {
		program := weeklyProgram()

		slots := program.TimeslotsForDay(time.Date(2021, 11, 22, 10, 0, 0, 0, time.UTC))
		require.Len(t, slots, 3)
		assert.Equal(t, TimeSlot{ID: 1, MOffset: 0}, slots[0])
		assert.Equal(t, TimeSlot{ID: 0, MOffset: 420}, slots[1])
		assert.Equal(t, TimeSlot{ID: 1, MOffset: 1320}, slots[2])
	})

	t.Run("day start padded with the carried-over slot", func(t *testing.T) {
		// Monday schedules night at 22:00; Tuesday's first own slot is at
		// 07:00, so Tuesday opens with Monday's night zone re-based to the
		// start of the day.
		program := &Program{
			Zones: []Zone{{ID: 0, Name: "Comfort"}, {ID: 1, Name: "Night"}},
			Timetable: []TimeSlot{
				{ID: 1, MOffset: 0},
				{ID: 0, MOffset: 420},
				{ID: 1, MOffset: 1320},
				{ID: 0, MOffset: minutesPerDay + 420},
				{ID: 1, MOffset: minutesPerDay + 1320},
			},
		}

		slots := program.TimeslotsForDay(time.Date(2021, 11, 23, 10, 0, 0, 0, time.UTC))
		require.Len(t, slots, 3)
		assert.Equal(t, TimeSlot{ID: 1, MOffset: minutesPerDay}, slots[0])
		assert.Equal(t, TimeSlot{ID: 0, MOffset: minutesPerDay + 420}, slots[1])
		assert.Equal(t, TimeSlot{ID: 1, MOffset: minutesPerDay + 1320}, slots[2])
	})

	t.Run("day with no slots of its own", func(t *testing.T) {
		program := &Program{
			Zones: []Zone{{ID: 0, Name: "Comfort"}, {ID: 1, Name: "Night"}},
			Timetable: []TimeSlot{
				{ID: 1, MOffset: 0},
				{ID: 0, MOffset: 420},
			},
		}

		// Wednesday has no slots; the last slot before it stays active for
		// the whole day.
		slots := program.TimeslotsForDay(time.Date(2021, 11, 24, 0, 0, 0, 0, time.UTC))
		require.Len(t, slots, 1)
		assert.Equal(t, TimeSlot{ID: 0, MOffset: 2 * minutesPerDay}, slots[0])
	})

	t.Run("empty timetable", func(t *testing.T) {
		program := &Program{}
		assert.Nil(t, program.TimeslotsForDay(time.Now()))
	})
}

func TestWeekMinute(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"monday midnight", time.Date(2021, 11, 22, 0, 0, 0, 0, time.UTC), 0},
		{"monday morning", time.Date(2021, 11, 22, 7, 30, 0, 0, time.UTC), 450},
		{"sunday end of week", time.Date(2021, 11, 28, 23, 59, 0, 0, time.UTC), minutesPerWeek - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weekMinute(tt.at))
		})
	}
}
