package cli

import "testing"

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{52340, "52,340"},
		{1234567, "1,234,567"},
	}

	for _, tc := range cases {
		if got := formatNumber(tc.in); got != tc.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0%"},
		{0.05, "5.00%"},
		{0.1234, "12.34%"},
		{1, "100.00%"},
	}

	for _, tc := range cases {
		if got := formatPercent(tc.in); got != tc.want {
			t.Errorf("formatPercent(%f) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
