package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReviewScraper/pkg/config"
)

func TestLimitsFromFlags(t *testing.T) {
	t.Parallel()

	base := config.LimitsConfig{MaxRecords: 100, PageSize: 5, MaxStalls: 3}

	testCases := []struct {
		name  string
		flags map[string]string
		want  config.LimitsConfig
	}{
		{"No Flags", nil, base},
		{"Zero Uses Config", map[string]string{"max-records": "0", "page-size": "0", "max-stalls": "0"}, base},
		{"Overrides", map[string]string{"max-records": "20", "page-size": "10"}, config.LimitsConfig{MaxRecords: 20, PageSize: 10, MaxStalls: 3}},
		{"Negative Disables Stalls", map[string]string{"max-stalls": "-1"}, config.LimitsConfig{MaxRecords: 100, PageSize: 5, MaxStalls: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			addLimitFlags(cmd)
			for k, v := range tc.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}

			got, err := limitsFromFlags(cmd, base)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLimitsFromFlags_RejectsNegative(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	addLimitFlags(cmd)
	require.NoError(t, cmd.Flags().Set("page-size", "-10"))

	_, err := limitsFromFlags(cmd, config.LimitsConfig{})
	assert.Error(t, err)
}
