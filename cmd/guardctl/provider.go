package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"streamguard/internal/provider"
)

func providerCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "provider",
		Summary: "Check the media server connection.",
		Subcommands: []*Command{
			{
				Name:    "test",
				Summary: "Connect with the stored provider settings and report the result.",
				Run: func(_ *pflag.FlagSet, _ []string) error {
					if err := a.open(ctx); err != nil {
						return err
					}
					p, err := a.source.Get()
					if err != nil {
						return err
					}
					tctx, cancel := context.WithTimeout(ctx, a.cfg.ProviderTimeoutDuration())
					defer cancel()
					res := p.TestConnection(tctx)
					if !res.Success {
						return fmt.Errorf("connection failed (%s): %s", res.Code, res.Message)
					}
					fmt.Fprintln(a.out, "ok:", res.Message)
					if id, err := p.GetServerIdentity(tctx); err == nil && id != "" {
						fmt.Fprintln(a.out, "server identity:", id)
					}
					return printLive(tctx, a, p)
				},
			},
		},
	}
}

func printLive(ctx context.Context, a *app, p provider.Provider) error {
	sessions, err := p.GetSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %s: %w", provider.Describe(provider.Classify(err)), err)
	}
	fmt.Fprintf(a.out, "live sessions: %d\n", len(sessions))
	return nil
}
