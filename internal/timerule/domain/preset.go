package domain

import (
	"fmt"
	"sort"
	"time"
)

// Preset names.
const (
	PresetWeekdaysOnly = "weekdays_only"
	PresetWeekendsOnly = "weekends_only"
	PresetAllowAll     = "allow_all"
	PresetBlockAll     = "block_all"
)

var presets = map[string]func(time.Weekday) Action{
	PresetWeekdaysOnly: func(d time.Weekday) Action {
		if d == time.Saturday || d == time.Sunday {
			return ActionBlock
		}
		return ActionAllow
	},
	PresetWeekendsOnly: func(d time.Weekday) Action {
		if d == time.Saturday || d == time.Sunday {
			return ActionAllow
		}
		return ActionBlock
	},
	PresetAllowAll: func(time.Weekday) Action { return ActionAllow },
	PresetBlockAll: func(time.Weekday) Action { return ActionBlock },
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Preset builds the seven whole-day rules, Sunday first, for the named preset. IDs and timestamps
// are left for the caller.
func Preset(name, userID, deviceIdentifier string) ([]Rule, error) {
	actionFor, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	rules := make([]Rule, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		rules = append(rules, Rule{
			UserID:           userID,
			DeviceIdentifier: deviceIdentifier,
			DayOfWeek:        int(d),
			StartTime:        "00:00",
			EndTime:          "24:00",
			Action:           actionFor(d),
			Enabled:          true,
		})
	}
	return rules, nil
}
