package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestGetOptimalWorkerCount(t *testing.T) {
	testCases := []struct {
		name     string
		config   string
		pages    int
		expected int
	}{
		{"Manual", "4", 10, 4},
		{"Manual Capped By Pages", "8", 3, 3},
		{"Single Page", "auto", 1, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := GetOptimalWorkerCount(tc.config, tc.pages, zap.NewNop())
			if result != tc.expected {
				t.Errorf("GetOptimalWorkerCount(%q, %d) = %d; want %d", tc.config, tc.pages, result, tc.expected)
			}
		})
	}
}

func TestGetOptimalWorkerCount_AutoIsBounded(t *testing.T) {
	got := GetOptimalWorkerCount("not-a-number", 100, zap.NewNop())
	if got < 1 || got > 16 {
		t.Errorf("GetOptimalWorkerCount auto = %d; want within [1, 16]", got)
	}
}
