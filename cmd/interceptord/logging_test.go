package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.aporeto.io/netinterceptor/controller/pkg/env"
	"go.uber.org/zap/zapcore"
)

func Test_LogConfig(t *testing.T) {

	c := logConfig(&env.Parameters{LogLevel: "trace", LogFormat: "console", LogToConsole: true})
	require.Equal(t, zapcore.DebugLevel, c.Level.Level())
	require.Equal(t, "console", c.Encoding)
	require.Equal(t, []string{"stderr"}, c.OutputPaths)

	c = logConfig(&env.Parameters{LogLevel: "WARN", LogFormat: "json", SocketPath: "/var/run/netinterceptor", LogID: "42"})
	require.Equal(t, zapcore.WarnLevel, c.Level.Level())
	require.Equal(t, "json", c.Encoding)
	require.Equal(t, []string{"/var/run/netinterceptor/interceptord-42.log"}, c.OutputPaths)
	require.Equal(t, "42", c.InitialFields["logID"])

	c = logConfig(&env.Parameters{LogLevel: "bogus", LogToConsole: true})
	require.Equal(t, zapcore.InfoLevel, c.Level.Level())
}

func Test_RunWithoutSecret(t *testing.T) {

	err := run(&env.Parameters{SocketPath: t.Name()})
	require.NotNil(t, err)
}
