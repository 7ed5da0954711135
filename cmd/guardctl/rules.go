package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"streamguard/internal/timerule/domain"
)

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// parseDay accepts 0-6 (Sunday first) or a weekday name of at least three letters.
func parseDay(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, domain.ErrInvalidDay
		}
		return n, nil
	}
	if len(s) >= 3 {
		if d, ok := dayNames[s[:3]]; ok && strings.HasPrefix(strings.ToLower(d.String()), s) {
			return int(d), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDay, s)
}

func scopeFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("user", "", "user id (required)")
	fs.String("device", "", "device identifier; empty applies to all of the user's devices")
	return fs
}

func scope(fs *pflag.FlagSet) (userID, device string, err error) {
	userID, _ = fs.GetString("user")
	device, _ = fs.GetString("device")
	if userID == "" {
		return "", "", fmt.Errorf("%w: --user is required", errUsage)
	}
	return userID, device, nil
}

func rulesCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "rules",
		Summary: "Manage weekly time rules.",
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List a user's rules, or those that apply to one device.",
				Flags:   func() *pflag.FlagSet { return scopeFlags("list") },
				Run: func(fs *pflag.FlagSet, _ []string) error {
					userID, device, err := scope(fs)
					if err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					var rules []domain.Rule
					if device != "" {
						rules, err = a.rules.ListForDevice(ctx, userID, device)
					} else {
						rules, err = a.rules.List(ctx, userID)
					}
					if err != nil {
						return err
					}
					printRules(a, rules)
					return nil
				},
			},
			{
				Name:    "add",
				Summary: "Add a rule for one weekday window.",
				Flags: func() *pflag.FlagSet {
					fs := scopeFlags("add")
					fs.String("day", "", "weekday: 0-6 (Sunday first) or a name")
					fs.String("start", "", "window start HH:MM")
					fs.String("end", "", "window end HH:MM, exclusive; 24:00 for end of day")
					fs.String("action", string(domain.ActionBlock), "allow or block")
					fs.Bool("disabled", false, "store the rule disabled")
					return fs
				},
				Run: func(fs *pflag.FlagSet, _ []string) error {
					userID, device, err := scope(fs)
					if err != nil {
						return err
					}
					dayArg, _ := fs.GetString("day")
					day, err := parseDay(dayArg)
					if err != nil {
						return err
					}
					start, _ := fs.GetString("start")
					end, _ := fs.GetString("end")
					action, _ := fs.GetString("action")
					disabled, _ := fs.GetBool("disabled")
					if err := a.open(ctx); err != nil {
						return err
					}
					r, err := a.rules.Create(ctx, domain.Rule{
						UserID:           userID,
						DeviceIdentifier: device,
						DayOfWeek:        day,
						StartTime:        start,
						EndTime:          end,
						Action:           domain.Action(action),
						Enabled:          !disabled,
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "rule %s created\n", r.ID)
					return nil
				},
			},
			ruleToggle(ctx, a, "enable", true),
			ruleToggle(ctx, a, "disable", false),
			{
				Name:    "delete",
				Summary: "Delete a rule.",
				Usage:   "<rule-id>",
				Run: func(_ *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 1, "a rule id"); err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					if err := a.rules.Delete(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "rule %s deleted\n", args[0])
					return nil
				},
			},
			{
				Name:    "preset",
				Summary: "Replace a scope's rules with a preset (" + strings.Join(domain.PresetNames(), ", ") + ").",
				Usage:   "<preset> [flags]",
				Flags:   func() *pflag.FlagSet { return scopeFlags("preset") },
				Run: func(fs *pflag.FlagSet, args []string) error {
					if err := exactArgs(args, 1, "a preset name"); err != nil {
						return err
					}
					userID, device, err := scope(fs)
					if err != nil {
						return err
					}
					if err := a.open(ctx); err != nil {
						return err
					}
					rules, err := a.rules.ApplyPreset(ctx, userID, device, args[0])
					if err != nil {
						return err
					}
					printRules(a, rules)
					return nil
				},
			},
		},
	}
}

func ruleToggle(ctx context.Context, a *app, name string, enabled bool) *Command {
	return &Command{
		Name:    name,
		Summary: strings.ToUpper(name[:1]) + name[1:] + " a rule.",
		Usage:   "<rule-id>",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := exactArgs(args, 1, "a rule id"); err != nil {
				return err
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			if _, err := a.rules.SetEnabled(ctx, args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "rule %s %sd\n", args[0], name)
			return nil
		},
	}
}

func printRules(a *app, rules []domain.Rule) {
	tw := tabwriter.NewWriter(a.out, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tDAY\tWINDOW\tACTION\tENABLED")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%s\t%t\n",
			r.ID, orDefault(r.DeviceIdentifier, "(all)"), time.Weekday(r.DayOfWeek), r.StartTime, r.EndTime, r.Action, r.Enabled)
	}
	tw.Flush()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
