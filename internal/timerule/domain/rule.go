// Package domain holds time rules as plain values and the pure functions that validate, compare and
// match them.
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action is what a matching rule does to a session.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// MinutesPerDay is the exclusive upper bound of a window, written "24:00".
const MinutesPerDay = 24 * 60

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidDay       = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidAction    = errors.New("action must be allow or block")
	ErrRuleOverlap      = errors.New("time rule overlaps an existing rule")
	ErrUnknownPreset    = errors.New("unknown preset")
	ErrNotFound         = errors.New("time rule not found")
)

// Rule restricts or permits streaming for a user, optionally narrowed to one device, on one weekday
// within [StartTime, EndTime).
type Rule struct {
	ID     string
	UserID string
	// DeviceIdentifier is empty for rules that apply to all of the user's devices.
	DeviceIdentifier string
	DayOfWeek        int
	StartTime        string
	EndTime          string
	Action           Action
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OverlapError names the rule a candidate collides with.
type OverlapError struct {
	Conflict Rule
}

func (e *OverlapError) Error() string {
	scope := "all devices"
	if e.Conflict.DeviceIdentifier != "" {
		scope = "device " + e.Conflict.DeviceIdentifier
	}
	return fmt.Sprintf("%s: %s %s-%s (%s, rule %s)", ErrRuleOverlap, time.Weekday(e.Conflict.DayOfWeek),
		e.Conflict.StartTime, e.Conflict.EndTime, scope, e.Conflict.ID)
}

func (e *OverlapError) Unwrap() error { return ErrRuleOverlap }

// ParseClock converts "HH:MM" to minutes after midnight. "24:00" is accepted as the end of the day.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || !isTwoDigits(h) || !isTwoDigits(m) {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTimeRange, s)
	}
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	if minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidTimeRange, s)
	}
	return hours*60 + minutes, nil
}

func isTwoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

// Window returns the rule's [start, end) in minutes.
func (r Rule) Window() (start, end int, err error) {
	if start, err = ParseClock(r.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(r.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// SameScope reports whether a and b govern the same (user, device-or-all) pair.
func SameScope(a, b Rule) bool {
	return a.UserID == b.UserID && a.DeviceIdentifier == b.DeviceIdentifier
}

// Validate checks day, action and window. Windows never wrap midnight.
func Validate(r Rule) error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("time rule: user id is required")
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: got %d", ErrInvalidDay, r.DayOfWeek)
	}
	if r.Action != ActionAllow && r.Action != ActionBlock {
		return fmt.Errorf("%w: got %q", ErrInvalidAction, r.Action)
	}
	start, end, err := r.Window()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidTimeRange, r.StartTime, r.EndTime)
	}
	return nil
}

// Overlaps reports whether two enabled rules of the same scope share any minute on the same day.
// Adjacent windows (one ends when the other starts) do not overlap. Invalid windows never overlap.
func Overlaps(a, b Rule) bool {
	if !a.Enabled || !b.Enabled || !SameScope(a, b) || a.DayOfWeek != b.DayOfWeek {
		return false
	}
	as, ae, err := a.Window()
	if err != nil {
		return false
	}
	bs, be, err := b.Window()
	if err != nil {
		return false
	}
	return as < be && bs < ae
}

// CheckConflicts returns an *OverlapError for the first rule in existing that overlaps candidate.
// A rule with the candidate's ID is skipped so updates do not collide with themselves.
func CheckConflicts(candidate Rule, existing []Rule) error {
	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, e) {
			return &OverlapError{Conflict: e}
		}
	}
	return nil
}

// ValidateSet validates every rule and checks them pairwise for overlap.
func ValidateSet(rules []Rule) error {
	for i, r := range rules {
		if err := Validate(r); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if err := CheckConflicts(r, rules[:i]); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// Matches reports whether r is enabled and covers minute on weekday.
func Matches(r Rule, weekday time.Weekday, minute int) bool {
	if !r.Enabled || r.DayOfWeek != int(weekday) {
		return false
	}
	start, end, err := r.Window()
	if err != nil {
		return false
	}
	return minute >= start && minute < end
}

// AppliesTo reports whether r governs the given device of its user.
func AppliesTo(r Rule, userID, deviceIdentifier string) bool {
	return r.UserID == userID && (r.DeviceIdentifier == "" || r.DeviceIdentifier == deviceIdentifier)
}
