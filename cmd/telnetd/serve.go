package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cyberinferno/telnetd/cacher"
	"github.com/cyberinferno/telnetd/commands"
	"github.com/cyberinferno/telnetd/config"
	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/reactor"
	"github.com/cyberinferno/telnetd/scheduler"
	"github.com/cyberinferno/telnetd/telnet"
)

var (
	configFile string
	listenAddr string
	listenPort int
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the command server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, f)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configFile, "config", "", "Configuration file (YAML)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on")
	serveCmd.Flags().IntVar(&listenPort, "port", 0, "TCP port to listen on")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly.
func loadConfig(flags *pflag.FlagSet) (config.File, error) {
	f := config.Default()
	if configFile != "" {
		var err error
		if f, err = config.Load(configFile); err != nil {
			return config.File{}, err
		}
	}

	if flags.Changed("listen") {
		f.Server.ListenAddress = listenAddr
	}

	if flags.Changed("port") {
		f.Server.Port = listenPort
	}

	if flags.Changed("log-level") {
		f.Log.Level = logLevel
	}

	if err := f.Validate(); err != nil {
		return config.File{}, fmt.Errorf("config: %w", err)
	}

	return f, nil
}

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, f config.File) error {
	log, err := logger.New(f.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	timers := scheduler.New(nil)
	loop, err := reactor.NewLoop(timers)
	if err != nil {
		return err
	}
	defer loop.Close()

	cache := cacher.NewMemoryCacher[string](f.Commands.CacheTTL, time.Minute)
	table := commands.NewTable(f.Commands, log.With(logger.Field{Key: "component", Value: "commands"}))

	srv, err := telnet.NewServer(f.Server, loop, timers, table, log.With(logger.Field{Key: "component", Value: "telnet"}))
	if err != nil {
		return err
	}

	if err := registerServerCommands(table, srv, cache, f.Commands.CacheTTL, time.Now()); err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	runErr := loop.Run(ctx)

	closed := srv.CloseAll()
	srv.Stop()
	log.Info("shutdown complete", logger.Field{Key: "sessions_closed", Value: closed})

	return runErr
}

func registerServerCommands(table *commands.Table, srv *telnet.Server, cache cacher.Cacher[string], ttl time.Duration, started time.Time) error {
	list := func() []commands.SessionView {
		sessions := srv.Sessions()
		views := make([]commands.SessionView, len(sessions))
		for i, s := range sessions {
			views[i] = s
		}

		return views
	}

	for _, cmd := range []commands.Command{
		commands.SessionsCommand(list),
		commands.StatsCommand(commands.StatsSource{
			Sessions: srv.SessionCount,
			Cache:    cache,
			Started:  started,
		}),
		commands.MemCommand(cache, ttl),
		commands.FlushCommand(cache),
	} {
		if err := table.Register(cmd); err != nil {
			return err
		}
	}

	return nil
}
