package env

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.aporeto.io/netinterceptor/controller/constants"
)

func TestGetParameters(t *testing.T) {

	for _, k := range []string{
		constants.EnvLogLevel,
		constants.EnvLogFormat,
		constants.EnvLogToConsole,
		constants.EnvSocketPath,
		constants.EnvHighWaterMark,
		constants.EnvQueueLimit,
	} {
		os.Unsetenv(k) // nolint: errcheck
	}

	p := GetParameters()
	require.Equal(t, "info", p.LogLevel)
	require.Equal(t, "json", p.LogFormat)
	require.False(t, p.LogToConsole)
	require.Equal(t, constants.DefaultSocketDir, p.SocketPath)
	require.Equal(t, constants.DefaultHighWaterMark, p.HighWaterMark)

	os.Setenv(constants.EnvLogToConsole, constants.EnvLogToConsoleEnable) // nolint: errcheck
	os.Setenv(constants.EnvHighWaterMark, "4096")                         // nolint: errcheck
	os.Setenv(constants.EnvQueueLimit, "-3")                              // nolint: errcheck
	defer func() {
		os.Unsetenv(constants.EnvLogToConsole)  // nolint: errcheck
		os.Unsetenv(constants.EnvHighWaterMark) // nolint: errcheck
		os.Unsetenv(constants.EnvQueueLimit)    // nolint: errcheck
	}()

	p = GetParameters()
	require.True(t, p.LogToConsole)
	require.Equal(t, 4096, p.HighWaterMark)
	require.Equal(t, constants.DefaultEventQueueLimit, p.QueueLimit)
}
