package commands

import "testing"

func TestParseEngineSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10MB", 10_000_000},
		{"1.5GiB", 1_610_612_736},
		{"", 0},
		{"garbage", 0},
		{"7", 7},
		{"100B", 100},
		{"2kB", 2_000},
		{"2KB", 2_000},
		{"2kb", 2_000},
		{"3mb", 3_000_000},
		{"4GB", 4_000_000_000},
		{"1TB", 1_000_000_000_000},
		{"1KiB", 1_024},
		{"1MIB", 1 << 20},
		{"2TiB", 2 << 40},
		{"  5MB  ", 5_000_000},
		{"1.5MB", 1_500_000},
		{"0.5KiB", 512},
		{"12XQ", 12}, // unknown unit multiplies by 1
	}
	for _, tc := range cases {
		if got := parseEngineSize(tc.in); got != tc.want {
			t.Errorf("parseEngineSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
