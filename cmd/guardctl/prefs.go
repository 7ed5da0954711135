package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"streamguard/internal/userpref/domain"
)

func prefsFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("set", pflag.ContinueOnError)
	fs.String("network", "", "network policy: both, lan or wan")
	fs.String("ip-access", "", "ip access policy: all or restricted")
	fs.StringSlice("allowed-ips", nil, "addresses or CIDR prefixes enforced when ip access is restricted")
	fs.String("default-block", "", "block unapproved devices: true, false or inherit")
	return fs
}

// applyPrefFlags copies the flags that were set onto p. Validation is left to the service.
func applyPrefFlags(p *domain.Preference, fs *pflag.FlagSet) error {
	if fs.Changed("network") {
		v, _ := fs.GetString("network")
		p.NetworkPolicy = domain.NetworkPolicy(strings.ToLower(v))
	}
	if fs.Changed("ip-access") {
		v, _ := fs.GetString("ip-access")
		p.IPAccessPolicy = domain.IPAccessPolicy(strings.ToLower(v))
	}
	if fs.Changed("allowed-ips") {
		p.AllowedIPs, _ = fs.GetStringSlice("allowed-ips")
	}
	if fs.Changed("default-block") {
		v, _ := fs.GetString("default-block")
		switch strings.ToLower(v) {
		case "inherit", "":
			p.DefaultBlock = nil
		case "true":
			b := true
			p.DefaultBlock = &b
		case "false":
			b := false
			p.DefaultBlock = &b
		default:
			return fmt.Errorf("%w: --default-block must be true, false or inherit", errUsage)
		}
	}
	return nil
}

func prefsCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "prefs",
		Summary: "Show and change per-user access preferences.",
		Subcommands: []*Command{
			{
				Name:    "get",
				Summary: "Show a user's preference, creating it with defaults if missing.",
				Usage:   "<user-id>",
				Run: func(_ *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 1, "a user id"); err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					p, err := a.prefs.Get(ctx, args[0])
					if err != nil {
						return err
					}
					printPreference(a, p)
					return nil
				},
			},
			{
				Name:    "set",
				Summary: "Change a user's preference. Unset flags keep their current value.",
				Usage:   "<user-id> [flags]",
				Flags:   prefsFlags,
				Run: func(fs *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 1, "a user id"); err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					p, err := a.prefs.Get(ctx, args[0])
					if err != nil {
						return err
					}
					if err := applyPrefFlags(p, fs); err != nil {
						return err
					}
					if err := a.prefs.Set(ctx, p); err != nil {
						return err
					}
					printPreference(a, p)
					return nil
				},
			},
		},
	}
}

func printPreference(a *app, p *domain.Preference) {
	defaultBlock := "inherit"
	if p.DefaultBlock != nil {
		defaultBlock = fmt.Sprint(*p.DefaultBlock)
	}
	fmt.Fprintf(a.out, "user:           %s\n", p.UserID)
	fmt.Fprintf(a.out, "default block:  %s\n", defaultBlock)
	fmt.Fprintf(a.out, "network policy: %s\n", p.NetworkPolicy)
	fmt.Fprintf(a.out, "ip access:      %s\n", p.IPAccessPolicy)
	fmt.Fprintf(a.out, "allowed ips:    %s\n", orDefault(strings.Join(p.AllowedIPs, ", "), "-"))
}
