package domain

import (
	"errors"
	"testing"
	"time"
)

func rule(day int, start, end string, action Action) Rule {
	return Rule{UserID: "u1", DayOfWeek: day, StartTime: start, EndTime: end, Action: action, Enabled: true}
}

func TestParseClock(t *testing.T) {
	testCases := []struct {
		in   string
		want int
		err  bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{" 07:05 ", 425, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"9:30", 0, true},
		{"+1:30", 0, true},
		{"0930", 0, true},
		{"", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseClock(tc.in)
			if tc.err {
				if !errors.Is(err, ErrInvalidTimeRange) {
					t.Fatalf("ParseClock(%q) err = %v, want ErrInvalidTimeRange", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		r    Rule
		want error
	}{
		{"valid", rule(1, "09:00", "10:00", ActionBlock), nil},
		{"whole day", rule(0, "00:00", "24:00", ActionAllow), nil},
		{"start equals end", rule(1, "09:00", "09:00", ActionBlock), ErrInvalidTimeRange},
		{"start after end", rule(1, "22:00", "02:00", ActionBlock), ErrInvalidTimeRange},
		{"bad clock", rule(1, "9am", "10:00", ActionBlock), ErrInvalidTimeRange},
		{"day too high", rule(7, "09:00", "10:00", ActionBlock), ErrInvalidDay},
		{"day negative", rule(-1, "09:00", "10:00", ActionBlock), ErrInvalidDay},
		{"bad action", rule(1, "09:00", "10:00", "deny"), ErrInvalidAction},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.r)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate err = %v, want %v", err, tc.want)
			}
		})
	}

	if err := Validate(Rule{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", Action: ActionBlock}); err == nil {
		t.Error("Validate should require a user id")
	}
}

func TestOverlaps(t *testing.T) {
	base := rule(1, "09:00", "10:00", ActionBlock)
	device := rule(1, "09:30", "10:30", ActionBlock)
	device.DeviceIdentifier = "tv-1"
	disabled := rule(1, "09:30", "10:30", ActionBlock)
	disabled.Enabled = false
	otherUser := rule(1, "09:30", "10:30", ActionBlock)
	otherUser.UserID = "u2"

	testCases := []struct {
		name string
		b    Rule
		want bool
	}{
		{"partial overlap", rule(1, "09:30", "10:30", ActionBlock), true},
		{"contained", rule(1, "09:15", "09:45", ActionAllow), true},
		{"identical", rule(1, "09:00", "10:00", ActionAllow), true},
		{"adjacent after", rule(1, "10:00", "11:00", ActionBlock), false},
		{"adjacent before", rule(1, "08:00", "09:00", ActionBlock), false},
		{"different day", rule(2, "09:30", "10:30", ActionBlock), false},
		{"device scope differs", device, false},
		{"disabled", disabled, false},
		{"different user", otherUser, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(base, tc.b); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.b, base); got != tc.want {
				t.Errorf("Overlaps (reversed) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheckConflicts(t *testing.T) {
	existing := []Rule{rule(1, "09:00", "10:00", ActionBlock)}
	existing[0].ID = "r1"

	err := CheckConflicts(rule(1, "09:30", "10:30", ActionBlock), existing)
	var overlap *OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("err = %v, want *OverlapError", err)
	}
	if !errors.Is(err, ErrRuleOverlap) {
		t.Error("OverlapError should match ErrRuleOverlap")
	}
	if overlap.Conflict.ID != "r1" {
		t.Errorf("conflict id = %q, want r1", overlap.Conflict.ID)
	}

	if err := CheckConflicts(rule(1, "10:00", "11:00", ActionBlock), existing); err != nil {
		t.Errorf("adjacent rule should not conflict: %v", err)
	}

	self := rule(1, "09:15", "10:15", ActionBlock)
	self.ID = "r1"
	if err := CheckConflicts(self, existing); err != nil {
		t.Errorf("a rule must not conflict with itself: %v", err)
	}
}

func TestMatches(t *testing.T) {
	r := rule(int(time.Monday), "09:00", "10:00", ActionBlock)
	testCases := []struct {
		name   string
		day    time.Weekday
		minute int
		want   bool
	}{
		{"start inclusive", time.Monday, 540, true},
		{"inside", time.Monday, 570, true},
		{"end exclusive", time.Monday, 600, false},
		{"before", time.Monday, 539, false},
		{"other day", time.Tuesday, 570, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(r, tc.day, tc.minute); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}

	r.Enabled = false
	if Matches(r, time.Monday, 570) {
		t.Error("disabled rule must not match")
	}

	whole := rule(int(time.Friday), "00:00", "24:00", ActionBlock)
	if !Matches(whole, time.Friday, 1439) {
		t.Error("whole-day rule should match the last minute")
	}
}

func TestAppliesTo(t *testing.T) {
	all := rule(1, "09:00", "10:00", ActionBlock)
	dev := all
	dev.DeviceIdentifier = "tv-1"

	if !AppliesTo(all, "u1", "phone") {
		t.Error("user-wide rule should apply to any device")
	}
	if !AppliesTo(dev, "u1", "tv-1") {
		t.Error("device rule should apply to its device")
	}
	if AppliesTo(dev, "u1", "phone") {
		t.Error("device rule should not apply to another device")
	}
	if AppliesTo(all, "u2", "tv-1") {
		t.Error("rule should not apply to another user")
	}
}

func TestPreset(t *testing.T) {
	rules, err := Preset(PresetWeekdaysOnly, "u1", "tv-1")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	if len(rules) != 7 {
		t.Fatalf("len = %d, want 7", len(rules))
	}
	var allow, block int
	for _, r := range rules {
		if r.DeviceIdentifier != "tv-1" || r.UserID != "u1" {
			t.Errorf("rule scope = %s/%s", r.UserID, r.DeviceIdentifier)
		}
		switch r.Action {
		case ActionAllow:
			allow++
		case ActionBlock:
			block++
			if d := time.Weekday(r.DayOfWeek); d != time.Saturday && d != time.Sunday {
				t.Errorf("block on %s", d)
			}
		}
	}
	if allow != 5 || block != 2 {
		t.Errorf("allow/block = %d/%d, want 5/2", allow, block)
	}
	if err := ValidateSet(rules); err != nil {
		t.Errorf("preset rules should be valid: %v", err)
	}

	if _, err := Preset("nights_only", "u1", ""); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("err = %v, want ErrUnknownPreset", err)
	}
	if got := PresetNames(); len(got) != 4 || got[0] != PresetAllowAll {
		t.Errorf("PresetNames = %v", got)
	}
}

func TestValidateSet_DetectsOverlapWithinBatch(t *testing.T) {
	rules := []Rule{
		rule(1, "09:00", "10:00", ActionBlock),
		rule(1, "09:30", "10:30", ActionAllow),
	}
	if err := ValidateSet(rules); !errors.Is(err, ErrRuleOverlap) {
		t.Fatalf("err = %v, want ErrRuleOverlap", err)
	}
}
