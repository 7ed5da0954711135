package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseOffset(t *testing.T) {
	testCases := []struct {
		in      string
		seconds int
		err     bool
	}{
		{"", 0, false},
		{"Z", 0, false},
		{"utc", 0, false},
		{"+00:00", 0, false},
		{"+05:30", 5*3600 + 30*60, false},
		{"-0800", -8 * 3600, false},
		{"+14", 14 * 3600, false},
		{"+15:00", 0, true},
		{"+05:60", 0, true},
		{"0530", 0, true},
		{"+5:30", 0, true},
		{"+ab:cd", 0, true},
		{"+-1", 0, true},
		{"+-1:00", 0, true},
		{"-+05:00", 0, true},
		{"+0-:30", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			loc, err := ParseOffset(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("ParseOffset(%q) should fail", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOffset(%q): %v", tc.in, err)
			}
			_, off := time.Date(2026, 6, 1, 12, 0, 0, 0, loc).Zone()
			if off != tc.seconds {
				t.Errorf("offset = %d, want %d", off, tc.seconds)
			}
		})
	}
}

func TestParseOffset_ZeroIsUTC(t *testing.T) {
	for _, in := range []string{"+00:00", "-00:00", "+0000", "+00"} {
		loc, err := ParseOffset(in)
		if err != nil {
			t.Fatalf("ParseOffset(%q): %v", in, err)
		}
		if loc != time.UTC {
			t.Errorf("ParseOffset(%q) = %v, want time.UTC", in, loc)
		}
	}
}

func TestDefaultsCoerce(t *testing.T) {
	for _, def := range Definitions() {
		if _, err := Coerce(def, def.Default); err != nil {
			t.Errorf("default of %s does not coerce: %v", def.Key, err)
		}
	}
}

func TestCoerce_WrapsInvalidValue(t *testing.T) {
	def, ok := Lookup(KeyDefaultBlock)
	if !ok {
		t.Fatal("default_block not declared")
	}
	_, err := Coerce(def, "perhaps")
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("does_not_exist"); ok {
		t.Fatal("Lookup should not find undeclared keys")
	}
}
