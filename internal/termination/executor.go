// Package termination issues provider kill commands and classifies their outcome.
package termination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"streamguard/internal/logger"
	"streamguard/internal/policy/engine"
	"streamguard/internal/provider"
)

// Error is a failed termination with its classified cause.
type Error struct {
	SessionKey string
	Kind       provider.ErrorKind
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("terminate session %s (%s): %v", e.SessionKey, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Executor stops sessions on the provider.
type Executor struct {
	msgs    engine.MessageSource
	timeout time.Duration
	log     logger.Logger
}

// NewExecutor returns an Executor. msgs supplies the generic fallback message and may be nil.
// A non-positive timeout means the caller's context alone bounds each call.
func NewExecutor(msgs engine.MessageSource, timeout time.Duration, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Executor{msgs: msgs, timeout: timeout, log: log.WithComponent("termination")}
}

// Terminate asks p to stop sessionKey, showing reason to the viewer. An empty reason is replaced by the
// configured generic message. A session the provider no longer knows counts as terminated.
func (e *Executor) Terminate(ctx context.Context, p provider.Provider, sessionKey, reason string) error {
	if p == nil {
		return &Error{SessionKey: sessionKey, Kind: provider.KindUnknown, Err: provider.ErrNotConfigured}
	}
	if strings.TrimSpace(reason) == "" {
		reason = engine.GenericMessage(e.msgs)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	err := p.TerminateSession(ctx, sessionKey, reason)
	switch {
	case err == nil:
		e.log.Info().Str("session_key", sessionKey).Msg("session terminated")
		return nil
	case errors.Is(err, provider.ErrSessionNotFound) || provider.IsStatus(err, http.StatusNotFound):
		e.log.Debug().Str("session_key", sessionKey).Msg("session already gone")
		return nil
	}
	return &Error{SessionKey: sessionKey, Kind: provider.Classify(err), Err: err}
}
