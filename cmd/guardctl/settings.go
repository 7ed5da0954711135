package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	settingsdomain "streamguard/internal/settings/domain"
)

func settingsCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "settings",
		Summary: "Show and change runtime settings.",
		Subcommands: []*Command{
			{
				Name:    "get",
				Summary: "Show one setting, or all of them.",
				Usage:   "[key]",
				Run: func(_ *pflag.FlagSet, args []string) error {
					if len(args) > 1 {
						return fmt.Errorf("%w: expected at most one key", errUsage)
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					if len(args) == 1 {
						raw, ok := a.store.Raw(args[0])
						if !ok {
							return fmt.Errorf("%w: %s", settingsdomain.ErrUnknownKey, args[0])
						}
						fmt.Fprintln(a.out, displaySetting(args[0], raw))
						return nil
					}
					defs := settingsdomain.Definitions()
					sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
					tw := tabwriter.NewWriter(a.out, 2, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "KEY\tVALUE")
					for _, def := range defs {
						raw, _ := a.store.Raw(def.Key)
						fmt.Fprintf(tw, "%s\t%s\n", def.Key, orDefault(displaySetting(def.Key, raw), "-"))
					}
					tw.Flush()
					return nil
				},
			},
			{
				Name:    "set",
				Summary: "Change a setting. A running server picks it up without a restart.",
				Usage:   "<key> <value>",
				Run: func(_ *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 2, "a key and a value"); err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					if err := a.store.Set(ctx, args[0], args[1]); err != nil {
						return err
					}
					raw, _ := a.store.Raw(args[0])
					fmt.Fprintf(a.out, "%s = %s\n", args[0], displaySetting(args[0], raw))
					return nil
				},
			},
		},
	}
}

// displaySetting masks the provider token.
func displaySetting(key, raw string) string {
	if key == settingsdomain.KeyProviderToken && raw != "" {
		return "********"
	}
	return raw
}
