package env

import (
	"os"
	"strconv"

	"go.aporeto.io/netinterceptor/controller/constants"
)

// Parameters holds the settings the daemon reads from its environment.
type Parameters struct {
	LogToConsole  bool
	LogID         string
	LogLevel      string
	LogFormat     string
	SocketPath    string
	Secret        string
	HighWaterMark int
	QueueLimit    int
}

// GetParameters retrieves the daemon parameters from the environment.
func GetParameters() *Parameters {

	p := &Parameters{
		LogLevel:      os.Getenv(constants.EnvLogLevel),
		LogFormat:     os.Getenv(constants.EnvLogFormat),
		LogID:         os.Getenv(constants.EnvLogID),
		SocketPath:    os.Getenv(constants.EnvSocketPath),
		Secret:        os.Getenv(constants.EnvRPCClientSecret),
		HighWaterMark: constants.DefaultHighWaterMark,
		QueueLimit:    constants.DefaultEventQueueLimit,
	}

	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	if p.LogFormat == "" {
		p.LogFormat = "json"
	}
	if p.SocketPath == "" {
		p.SocketPath = constants.DefaultSocketDir
	}

	if console := os.Getenv(constants.EnvLogToConsole); console == constants.EnvLogToConsoleEnable {
		p.LogToConsole = true
	}

	p.HighWaterMark = positiveInt(constants.EnvHighWaterMark, p.HighWaterMark)
	p.QueueLimit = positiveInt(constants.EnvQueueLimit, p.QueueLimit)

	return p
}

// positiveInt reads an integer variable and falls back to def when it is
// missing or not a positive number.
func positiveInt(name string, def int) int {

	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil || v <= 0 {
		return def
	}

	return v
}
