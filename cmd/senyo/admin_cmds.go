package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/danaasamuel2023/senyo-sub001/server"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/spf13/cobra"
)

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (admin and superadmin only)",
	}
	cmd.AddCommand(adminUsersCmd(a))
	return cmd
}

func adminUsersCmd(a *app) *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			render := func(ctx context.Context, _ *users.Profile) error {
				query := url.Values{}
				query.Set("offset", strconv.Itoa(offset))
				query.Set("limit", strconv.Itoa(limit))

				var resp struct {
					Users []users.Account `json:"users"`
				}
				if err := a.client.GetJSON(ctx, server.RouteAdminUsers+"?"+query.Encode(), &resp); err != nil {
					return err
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tBALANCE\tBLOCKED")
				for _, account := range resp.Users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", account.Email, account.Name, account.Role, account.WalletBalance, account.Blocked)
				}
				return tw.Flush()
			}
			return a.guarded(cmd.Context(), out, render, users.RoleAdmin, users.RoleSuperAdmin)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many accounts")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum accounts to list")
	return cmd
}
