package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.aporeto.io/netinterceptor/controller"
	"go.aporeto.io/netinterceptor/controller/constants"
	"go.aporeto.io/netinterceptor/controller/pkg/controlrpc"
	"go.aporeto.io/netinterceptor/controller/pkg/env"
	"go.aporeto.io/netinterceptor/utils/cache"
	"go.aporeto.io/netinterceptor/utils/panicrecovery"
	"go.uber.org/zap"
)

var (
	params  = env.GetParameters()
	rootCmd = &cobra.Command{
		Use:   "interceptord",
		Short: "transparent network interception daemon",
		RunE: func(c *cobra.Command, args []string) error {

			logger, err := newLogger(params)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint: errcheck
			zap.ReplaceGlobals(logger)

			return run(params)
		},
	}
)

// run hosts the engine and its control channel until a signal arrives.
func run(p *env.Parameters) error {

	if p.Secret == "" {
		return errors.New("no secret found")
	}

	constants.ConfigureSocketsPath(p.SocketPath)
	if err := os.MkdirAll(constants.SocketsPath, 0700); err != nil {
		return errors.Wrapf(err, "unable to create %s", constants.SocketsPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := controller.New(
		controller.OptionHighWaterMark(p.HighWaterMark),
		controller.OptionEventQueueLimit(p.QueueLimit),
	)
	go func() {
		defer panicrecovery.HandleEventualPanic("engine", cancel)
		engine.Run(ctx)
	}()

	server := controlrpc.NewServer(engine, constants.ControlSocket, p.Secret, constants.DefaultReadBufferSize)

	errs := make(chan error, 1)
	go func() {
		defer panicrecovery.HandleEventualPanic("control channel", cancel)
		errs <- server.Run(ctx)
	}()

	zap.L().Info("Interception daemon started",
		zap.String("socket", constants.ControlSocket),
		zap.Int("highWaterMark", p.HighWaterMark),
		zap.Int("queueLimit", p.QueueLimit),
	)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	select {
	case <-c:
		zap.L().Info("Interception daemon exiting ...")
		engine.Detach()
		cancel()
		<-errs
	case <-ctx.Done():
		return errors.New("interception daemon stopped after a panic")
	case err := <-errs:
		if err != nil {
			return errors.Wrap(err, "control channel failed")
		}
		engine.Detach()
	}

	zap.L().Debug("Caches at exit", zap.String("caches", cache.ToString()))

	return nil
}

func main() {

	rootCmd.PersistentFlags().StringVar(&params.SocketPath, "socket-dir", params.SocketPath, "Directory of the control socket")
	rootCmd.PersistentFlags().StringVar(&params.Secret, "secret", params.Secret, "Shared secret authenticating controller requests")
	rootCmd.PersistentFlags().StringVar(&params.LogLevel, constants.OptionLogLevel, params.LogLevel, "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&params.LogFormat, constants.OptionLogFormat, params.LogFormat, "Log format (json, console)")
	rootCmd.PersistentFlags().BoolVar(&params.LogToConsole, "log-to-console", params.LogToConsole, "Log to the console instead of a file")
	rootCmd.PersistentFlags().IntVar(&params.HighWaterMark, "high-water-mark", params.HighWaterMark, "Bytes a connection may take from the stack before it is throttled")
	rootCmd.PersistentFlags().IntVar(&params.QueueLimit, "queue-limit", params.QueueLimit, "Number of records the event queue holds")

	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("Cannot execute the interception daemon", zap.Error(err))
		os.Exit(1)
	}
}
