package constants

import (
	"path/filepath"
	"time"
)

const (
	// DefaultSocketDir is the default directory of the control socket
	DefaultSocketDir = "/var/run/netinterceptor"

	// ControlSocketName is the name of the control socket inside the socket directory
	ControlSocketName = "control.sock"
)

const (

	// EnvSocketPath stores the directory of the control socket
	EnvSocketPath = "INTERCEPTOR_ENV_SOCKET_PATH"

	// EnvRPCClientSecret is the secret used between RPC client/server
	EnvRPCClientSecret = "INTERCEPTOR_ENV_SECRET"

	// EnvLogLevel store the log level to be used.
	EnvLogLevel = "INTERCEPTOR_ENV_LOG_LEVEL"

	// EnvLogFormat store the log format to be used.
	EnvLogFormat = "INTERCEPTOR_ENV_LOG_FORMAT"

	// EnvLogToConsole is set to log to the console instead of a file.
	EnvLogToConsole = "INTERCEPTOR_ENV_LOG_TO_CONSOLE"

	// EnvLogToConsoleEnable is the value enabling console logs.
	EnvLogToConsoleEnable = "1"

	// EnvLogID store the context Id for the log file to be used.
	EnvLogID = "INTERCEPTOR_ENV_LOG_ID"

	// EnvHighWaterMark overrides the per connection receive high water mark
	EnvHighWaterMark = "INTERCEPTOR_ENV_HIGH_WATER_MARK"

	// EnvQueueLimit overrides the event queue bound
	EnvQueueLimit = "INTERCEPTOR_ENV_QUEUE_LIMIT"
)

// LogLevel corresponds to log level of any logger. eg: zap.
type LogLevel string

// LogOptions
const (
	// OptionLogLevel represents the log-level
	OptionLogLevel = "log-level"
	// OptionLogFormat represents the log-format
	OptionLogFormat = "log-format"
	// OptionLogFilePath represents the log location path
	OptionLogFilePath = "log-file-path"
)

// Various log levels.
const (
	Info  LogLevel = "Info"
	Debug LogLevel = "Debug"
	Trace LogLevel = "Trace"
	Error LogLevel = "Error"
	Warn  LogLevel = "Warn"
)

// Engine limits. Receive throttling and the datagram bound have a direct
// effect on the throughput of filtered connections.
const (
	// DefaultHighWaterMark is the number of bytes a connection may take from
	// the stack before it is throttled.
	DefaultHighWaterMark = 64 * 1024

	// DefaultMaxPendedDatagrams is the number of datagram operations an
	// address may hold before sends are rejected.
	DefaultMaxPendedDatagrams = 5

	// DefaultEventQueueLimit is the number of records the event queue holds.
	DefaultEventQueueLimit = 16384

	// DefaultMaxRecordPayload is the largest record payload accepted by the queue.
	DefaultMaxRecordPayload = 128 * 1024

	// DefaultDispatcherBacklog is the number of completions the dispatcher queues.
	DefaultDispatcherBacklog = 4096

	// DefaultRegistryCapacity is the number of endpoints the registry tracks.
	DefaultRegistryCapacity = 1 << 20

	// DefaultReadBufferSize is the size of the buffer used for controller reads.
	DefaultReadBufferSize = 256 * 1024
)

// Process name lookups.
const (
	// ProcessNameCacheSize is the number of names kept in the cache.
	ProcessNameCacheSize = 1024
	// ProcessNameValidity is how long a resolved name is trusted.
	ProcessNameValidity = 30 * time.Second
)

// SocketsPath is the directory holding the control socket
var SocketsPath = DefaultSocketDir

// ControlSocket is the full path of the control socket
var ControlSocket = filepath.Join(DefaultSocketDir, ControlSocketName)

// ConfigureSocketsPath updates the sockets path
func ConfigureSocketsPath(sockPath string) {
	SocketsPath = sockPath
	ControlSocket = filepath.Join(sockPath, ControlSocketName)
}
