package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"streamguard/internal/device/domain"
	devicerepo "streamguard/internal/device/repository"
)

func devicesCommand(ctx context.Context, a *app) *Command {
	byID := func(name, summary string, op func(context.Context, string) error, done string) *Command {
		return &Command{
			Name:    name,
			Summary: summary,
			Usage:   "<device-id>",
			Run: func(_ *pflag.FlagSet, args []string) error {
				if err := exactArgs(args, 1, "a device id"); err != nil {
					return err
				}
				if err := a.open(ctx); err != nil {
					return err
				}
				if err := op(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "device %s %s\n", args[0], done)
				return nil
			},
		}
	}

	return &Command{
		Name:    "devices",
		Summary: "List and approve client devices.",
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List devices, newest sighting first.",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
					fs.String("user", "", "only devices of this user id")
					fs.String("status", "", "only devices with this status (pending, approved, rejected)")
					return fs
				},
				Run: func(fs *pflag.FlagSet, _ []string) error {
					userID, _ := fs.GetString("user")
					status, _ := fs.GetString("status")
					if err := a.open(ctx); err != nil {
						return err
					}
					devices, err := a.registry.List(ctx, devicerepo.ListFilter{UserID: userID, Status: domain.Status(status)})
					if err != nil {
						return err
					}
					printDevices(a, devices, time.Now())
					return nil
				},
			},
			byID("approve", "Approve a device.", func(ctx context.Context, id string) error {
				return a.registry.Approve(ctx, id)
			}, "approved"),
			byID("reject", "Reject a device.", func(ctx context.Context, id string) error {
				return a.registry.Reject(ctx, id)
			}, "rejected"),
			byID("delete", "Forget a device; its next sighting registers it as pending.", func(ctx context.Context, id string) error {
				return a.registry.Delete(ctx, id)
			}, "deleted"),
			byID("revoke", "Revoke temporary access.", func(ctx context.Context, id string) error {
				return a.registry.RevokeTemporaryAccess(ctx, id)
			}, "temporary access revoked"),
			{
				Name:    "grant",
				Summary: "Let a device stream for a while regardless of its status.",
				Usage:   "<device-id> [flags]",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("grant", pflag.ContinueOnError)
					fs.DurationP("for", "f", time.Hour, "grant duration, rounded to whole minutes")
					return fs
				},
				Run: func(fs *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 1, "a device id"); err != nil {
						return err
					}
					d, _ := fs.GetDuration("for")
					if err := a.open(ctx); err != nil {
						return err
					}
					until, err := a.registry.GrantTemporaryAccess(ctx, args[0], int(d.Round(time.Minute)/time.Minute))
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "device %s may stream until %s\n", args[0], until.Local().Format(time.RFC3339))
					return nil
				},
			},
		},
	}
}

func printDevices(a *app, devices []*domain.Device, now time.Time) {
	tw := tabwriter.NewWriter(a.out, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tNAME\tPRODUCT\tSTATUS\tSESSIONS\tLAST SEEN\tTEMP ACCESS")
	for _, d := range devices {
		temp := "-"
		if d.HasTemporaryAccess(now) {
			temp = "until " + d.TemporaryAccessExpiresAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID, orDefault(d.Username, "-"), orDefault(d.DisplayName, "-"), orDefault(d.Product, "-"), d.Status, d.SessionCount,
			d.LastSeenAt.Local().Format("2006-01-02 15:04"), temp)
	}
	tw.Flush()
}
