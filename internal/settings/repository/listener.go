package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// reconnectDelay is how long Listen waits before re-dialing after the connection drops.
const reconnectDelay = 5 * time.Second

// Listen holds a dedicated pgx connection on ChangeChannel and calls onChange with each notified key.
// It reconnects after failures and returns only when ctx is done. onError, if non-nil, receives every
// connection error before the reconnect delay.
func Listen(ctx context.Context, dsn string, onChange func(key string), onError func(error)) error {
	for {
		err := listenOnce(ctx, dsn, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onError != nil && err != nil {
			onError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func listenOnce(ctx context.Context, dsn string, onChange func(key string)) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("settings listen: connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("settings listen: %w", err)
	}
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("settings listen: wait: %w", err)
		}
		onChange(n.Payload)
	}
}
