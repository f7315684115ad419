package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		name     string
		percent  float64
		bps      float64
		expected string
	}{
		{name: "bps", percent: 0.1, bps: 100, expected: "10%   100.00 bps"},
		{name: "below kilo", percent: 0.1, bps: 1023, expected: "10%   1023.00 bps"},
		{name: "kbps", percent: 0.5, bps: 2048, expected: "50%   2.00 Kbps"},
		{name: "mbps", percent: 1, bps: 3 * 1024 * 1024 / 2, expected: "100%   1.50 Mbps"},
		{name: "zero", percent: 0, bps: 0, expected: "0%   0.00 bps"},
		{name: "rounded percent", percent: 0.29, bps: 1024, expected: "29%   1.00 Kbps"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, FormatSpeed(tc.percent, tc.bps))
		})
	}
}

func TestRound2(t *testing.T) {
	require.Equal(t, 0.33, Round2(1.0/3))
	require.Equal(t, 0.67, Round2(2.0/3))
	require.Equal(t, 1.0, Round2(1))
}
