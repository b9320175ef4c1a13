package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommandRegistersEveryConfigurationFlag(testingT *testing.T) {
	command, err := NewServerApplication().Command()
	require.NoError(testingT, err)

	for _, option := range configurationOptions {
		flag := command.Flags().Lookup(option.flagName)
		require.NotNil(testingT, flag, option.flagName)
		require.Equal(testingT, option.defaultValue, flag.DefValue, option.flagName)
	}
}

func TestLoadConfigurationParsesDurations(t *testing.T) {
	testCases := []struct {
		name                  string
		arguments             []string
		expectedError         string
		expectedSweepInterval time.Duration
		expectedSpamRetention time.Duration
	}{
		{
			name:                  "defaults",
			expectedSweepInterval: time.Hour,
			expectedSpamRetention: 720 * time.Hour,
		},
		{
			name:                  "overrides",
			arguments:             []string{"--" + flagNameSweepInterval + "=15m", "--" + flagNameSpamRetention + "=0s"},
			expectedSweepInterval: 15 * time.Minute,
		},
		{
			name:          "invalid sweep interval",
			arguments:     []string{"--" + flagNameSweepInterval + "=hourly"},
			expectedError: flagNameSweepInterval,
		},
		{
			name:          "invalid cache ttl",
			arguments:     []string{"--" + flagNameWidgetCacheTTL + "=soon"},
			expectedError: flagNameWidgetCacheTTL,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			application := NewServerApplication()
			command, err := application.Command()
			require.NoError(testingT, err)
			require.NoError(testingT, command.ParseFlags(testCase.arguments))

			configuration, loadErr := application.loadConfiguration()
			if testCase.expectedError != "" {
				require.ErrorContains(testingT, loadErr, testCase.expectedError)
				return
			}
			require.NoError(testingT, loadErr)
			require.Equal(testingT, ServeModeMonolith, configuration.ServeMode)
			require.Equal(testingT, testCase.expectedSweepInterval, configuration.SweepInterval)
			require.Equal(testingT, testCase.expectedSpamRetention, configuration.SpamRetention)
		})
	}
}
