package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/danaasamuel2023/senyo-sub001/balance"
	"github.com/danaasamuel2023/senyo-sub001/events"
	"github.com/danaasamuel2023/senyo-sub001/guard"
	"github.com/danaasamuel2023/senyo-sub001/server"
	"github.com/danaasamuel2023/senyo-sub001/timeout"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/spf13/cobra"
)

type meResponse struct {
	User users.Profile `json:"user"`
}

func balanceCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return a.guarded(cmd.Context(), out, func(ctx context.Context, user *users.Profile) error {
				var me meResponse
				if err := a.client.GetJSON(ctx, server.RouteUsersMe, &me); err != nil {
					return err
				}
				a.manager.PatchWalletBalance(me.User.WalletBalance)
				fmt.Fprintf(out, "Wallet balance: GHS %.2f\n", me.User.WalletBalance)

				if !watch {
					return nil
				}
				return a.watchBalance(ctx, cmd.InOrStdin(), out, user)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling for deposits until interrupted")
	return cmd
}

// watchBalance polls for balance updates until ctx ends or the session
// navigates away, on timeout or on a sign-out from another process. Each
// line read from in counts as activity.
func (a *app) watchBalance(ctx context.Context, in io.Reader, out io.Writer, user *users.Profile) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewBus(a.logger)
	bus.Subscribe(events.BalanceUpdated, func(e *events.Event) {
		if detail, ok := e.Detail.(events.BalanceDetail); ok {
			fmt.Fprintf(out, "%s  +GHS %.2f  balance GHS %.2f  (%s)\n",
				detail.Timestamp.Local().Format("15:04:05"), detail.Amount, detail.NewBalance, detail.Reference)
		}
	})
	bus.Subscribe(events.SessionWarning, func(e *events.Event) {
		if detail, ok := e.Detail.(events.SessionWarningDetail); ok {
			fmt.Fprintf(out, "Your session ends in %d minute(s). Press Enter to stay signed in.\n", detail.MinutesRemaining)
		}
	})

	timeouts := timeout.New(a.manager, bus, timeout.WithLogger(a.logger))
	if !a.manager.RememberMe() {
		timeouts.StartSession(a.cfg.GetSessionTimeout(), a.cfg.GetSessionWarning())
	}
	defer timeouts.ClearSession()

	poller := balance.New(a.client, a.manager, bus,
		balance.WithInterval(a.cfg.GetBalancePollInterval()),
		balance.WithLogger(a.logger),
	)
	poller.Watch(user.ID, true)
	defer poller.Stop()

	if !a.manager.Watch(ctx) {
		a.logger.Debug().Msg("credential store cannot report changes from other processes")
	}
	guard.New(a.manager, a.nav, guard.WithSignInPath(a.cfg.GetSignInPath())).
		Watch(ctx, func(guard.Decision) {})

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			timeouts.RefreshSession()
		}
	}()

	fmt.Fprintf(out, "Watching for deposits every %s. Ctrl-C to stop.\n", a.cfg.GetBalancePollInterval())
	select {
	case <-ctx.Done():
		return nil
	case <-a.nav.Done():
		return a.nav.err()
	}
}

func depositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Simulate a confirmed mobile-money top-up (development server only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}

			out := cmd.OutOrStdout()
			return a.guarded(cmd.Context(), out, func(ctx context.Context, user *users.Profile) error {
				var resp struct {
					Data events.BalanceDetail `json:"data"`
				}
				if err := a.client.PostJSON(ctx, server.RouteDepositsConfirm, map[string]any{"amount": amount}, &resp); err != nil {
					return err
				}
				a.manager.PatchWalletBalance(resp.Data.NewBalance)
				fmt.Fprintf(out, "Deposited GHS %.2f, new balance GHS %.2f (ref %s)\n", resp.Data.Amount, resp.Data.NewBalance, resp.Data.Reference)
				return nil
			})
		},
	}
}
