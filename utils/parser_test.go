package utils

import "testing"

func TestCleanText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "Great mask", "Great mask"},
		{"Indented Markup", "\n\t\t  Great\n\t\t  mask  \n", "Great mask"},
		{"Non-breaking Space", "Jane\u00a0D.", "Jane D."},
		{"Only Whitespace", " \n\t ", ""},
		{"Empty String", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := CleanText(tc.input)
			if result != tc.expected {
				t.Errorf("CleanText(%q) = %q; want %q", tc.input, result, tc.expected)
			}
		})
	}
}
