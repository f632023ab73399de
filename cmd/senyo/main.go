package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "senyo"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(config.New()).ExecuteContext(ctx); err != nil {
		var redirect *redirectError
		if errors.As(err, &redirect) {
			fmt.Fprintln(os.Stderr, redirect.Hint())
			return 3
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func rootCmd(cfg config.Config) *cobra.Command {
	var (
		logLevel string
		apiURL   string
	)

	a := &app{cfg: cfg}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Command line client for the Senyo data-bundle wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logLevel)
			a.logger = log.Logger
			a.baseURL = apiURL
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.GetLogLevel(), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&apiURL, "api", cfg.GetBaseURL(), "Base URL of the API")

	cmd.AddCommand(
		serveCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		balanceCmd(a),
		depositCmd(a),
		adminCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}
