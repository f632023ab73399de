package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/danaasamuel2023/senyo-sub001/server"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout       = 5 * time.Second
	revocationCleanupTick = 10 * time.Minute
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the development API server with in-memory storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(a.cfg.GetAppName())

			srv, err := server.New(a.cfg, server.NewInMemoryRepos(), server.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if password := srv.GeneratedPassword(); password != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Super admin password: %s\n", password)
			}

			cleanupCtx, stopCleanup := context.WithCancel(cmd.Context())
			cleanupDone := srv.CleanupRevokedTokens(cleanupCtx, revocationCleanupTick)
			defer func() {
				stopCleanup()
				<-cleanupDone
			}()

			httpServer := &http.Server{
				Addr:              a.cfg.GetPort(),
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errs := make(chan error, 1)
			go func() {
				errs <- listenAndServe(a, httpServer)
			}()

			select {
			case err := <-errs:
				return err
			case <-cmd.Context().Done():
			}
			return shutdown(httpServer)
		},
	}
}

func listenAndServe(a *app, server *http.Server) error {
	a.logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
