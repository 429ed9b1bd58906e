package main

import (
	"path/filepath"
	"strings"

	"go.aporeto.io/netinterceptor/controller/pkg/env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logConfig builds the zap configuration from the daemon parameters. Trace
// maps to debug since zap has no lower level.
func logConfig(p *env.Parameters) zap.Config {

	config := zap.NewProductionConfig()
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(p.LogLevel) {
	case "trace", "debug":
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if strings.ToLower(p.LogFormat) == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if !p.LogToConsole {
		name := "interceptord.log"
		if p.LogID != "" {
			name = "interceptord-" + p.LogID + ".log"
		}
		config.OutputPaths = []string{filepath.Join(p.SocketPath, name)}
	}

	if p.LogID != "" {
		config.InitialFields = map[string]interface{}{"logID": p.LogID}
	}

	return config
}

func newLogger(p *env.Parameters) (*zap.Logger, error) {
	return logConfig(p).Build()
}
