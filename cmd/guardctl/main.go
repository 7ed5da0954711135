// guardctl administers streamguard: device approval, time rules, user preferences, settings and
// the media server connection. It talks to the same database as the server; setting changes reach
// a running server through Postgres notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streamguard/internal/audit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = audit.WithActor(ctx, actor())

	a := newApp(os.Stdout)
	err := rootCommand(ctx, a).Execute(os.Args[1:])
	a.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "guardctl:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func rootCommand(ctx context.Context, a *app) *Command {
	return &Command{
		Name:    "guardctl",
		Summary: "Administer streamguard devices, rules, preferences and settings.",
		Subcommands: []*Command{
			devicesCommand(ctx, a),
			rulesCommand(ctx, a),
			prefsCommand(ctx, a),
			settingsCommand(ctx, a),
			sessionsCommand(ctx, a),
			providerCommand(ctx, a),
		},
	}
}
