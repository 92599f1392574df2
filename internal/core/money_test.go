package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"12.3", 1230, true},
		{"42.50", 4250, true},
		{"0.01", 1, true},
		{"0.005", 1, true},   // half-up rounding
		{"12.344", 1234, true}, // third digit below 5 rounds down
		{"12.345", 1235, true},
		{" 2.50 ", 250, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1e2", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{4250, "$42.50"},
		{1, "$0.01"},
		{100, "$1.00"},
		{-230, "-$2.30"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money{%d} = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
