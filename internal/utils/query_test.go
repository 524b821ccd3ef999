package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 7, -3},
		{"3.5", 9, 9},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestLimitOrDefault(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 50},
		{"abc", 50},
		{"0", 50},
		{"-1", 50},
		{"201", 50},
		{"1", 1},
		{"200", 200},
		{"25", 25},
	}
	for _, tc := range cases {
		if got := LimitOrDefault(tc.in, 50, 200); got != tc.want {
			t.Fatalf("LimitOrDefault(%q, 50, 200) = %d; want %d", tc.in, got, tc.want)
		}
	}
}
