package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	sessionrepo "streamguard/internal/session/repository"
)

func sessionsCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "sessions",
		Summary: "Inspect session history.",
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List sessions, newest first.",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
					fs.String("user", "", "only sessions of this user id")
					fs.Bool("active", false, "only sessions still playing")
					fs.Int32P("limit", "n", 50, "maximum rows; 0 for all")
					return fs
				},
				Run: func(fs *pflag.FlagSet, _ []string) error {
					userID, _ := fs.GetString("user")
					active, _ := fs.GetBool("active")
					limit, _ := fs.GetInt32("limit")
					if err := a.open(ctx); err != nil {
						return err
					}
					rows, err := a.sessions.List(ctx, sessionrepo.ListFilter{UserID: userID, ActiveOnly: active, Limit: limit})
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(a.out, 2, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "STARTED\tUSER\tDEVICE\tTITLE\tIP\tSTATE\tSTOP CODE")
					for _, h := range rows {
						state := h.PlayerState
						if h.EndedAt != nil {
							state = "ended"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
							h.StartedAt.Local().Format("2006-01-02 15:04"), orDefault(h.Username, h.UserID),
							orDefault(h.DeviceName, h.DeviceIdentifier), orDefault(h.ContentTitle, "-"),
							orDefault(h.IPAddress, "-"), state, orDefault(h.StopCode, "-"))
					}
					tw.Flush()
					return nil
				},
			},
		},
	}
}
