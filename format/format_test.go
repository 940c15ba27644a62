package format

import "testing"

func TestHumanNumber(t *testing.T) {
	cases := []struct {
		input    uint64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{30_030_000, "30.03M"},
		{59_000_000, "59M"},
		{1_000_000_000, "1B"},
		{1_500_000_000, "1.5B"},
	}

	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := HumanNumber(tc.input); got != tc.expected {
				t.Errorf("HumanNumber(%d) = %q, erwartet %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1 KB"},
		{1500, "1.5 KB"},
		{12_000_000, "12 MB"},
		{3_000_000_000, "3 GB"},
	}

	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := HumanBytes(tc.input); got != tc.expected {
				t.Errorf("HumanBytes(%d) = %q, erwartet %q", tc.input, got, tc.expected)
			}
		})
	}
}
