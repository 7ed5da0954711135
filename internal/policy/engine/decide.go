// Package engine decides, for one live session, whether it may continue. Decide is pure; Evaluator
// loads the latest committed state and calls it.
package engine

import (
	"strings"
	"time"

	devicedomain "streamguard/internal/device/domain"
	"streamguard/internal/policy/domain"
	timeruledomain "streamguard/internal/timerule/domain"
	userprefdomain "streamguard/internal/userpref/domain"
)

// Decision is re-exported for callers that only import the engine.
type Decision = domain.Decision

// Input is everything a decision depends on.
type Input struct {
	Product   string
	IPAddress string
	// Preference may be nil; then no IP restrictions apply and the global default is used.
	Preference *userprefdomain.Preference
	// Rules are the rules governing the session's device. Rules for other scopes are ignored.
	Rules            []timeruledomain.Rule
	UserID           string
	DeviceIdentifier string
	// Device is nil when the device has never been registered; it is then treated as pending.
	Device             *devicedomain.Device
	GlobalDefaultBlock bool
	ExemptProducts     []string
	// Now must already be in the configured timezone.
	Now time.Time
}

// Decide applies, in order: exempt products, IP policy, time policy, approval status. The first
// rule that blocks wins.
func Decide(in Input, msgs MessageSource) Decision {
	if isExempt(in.Product, in.ExemptProducts) {
		return domain.Allow(domain.ReasonExemptProduct)
	}

	var ipErr error
	if code, blocked, err := checkIP(in); err != nil {
		ipErr = err
	} else if blocked {
		return block(code, msgs, nil)
	}

	if timeBlocked(in) {
		return block(domain.StopTimeRestricted, msgs, ipErr)
	}

	d := approval(in, msgs)
	d.IPError = ipErr
	return d
}

func block(code domain.StopCode, msgs MessageSource, ipErr error) Decision {
	return Decision{Block: true, StopCode: code, Reason: domain.ReasonBlocked, Message: MessageFor(code, msgs), IPError: ipErr}
}

func isExempt(product string, exempt []string) bool {
	product = strings.TrimSpace(product)
	if product == "" {
		return false
	}
	for _, e := range exempt {
		if strings.EqualFold(strings.TrimSpace(e), product) {
			return true
		}
	}
	return false
}

// checkIP returns a validation error when the address is absent or malformed; the caller then skips
// every IP check rather than blocking.
func checkIP(in Input) (domain.StopCode, bool, error) {
	pref := in.Preference
	if pref == nil {
		return "", false, nil
	}
	restricted := pref.IPAccessPolicy == userprefdomain.IPAccessRestricted
	if pref.NetworkPolicy != userprefdomain.NetworkLAN && pref.NetworkPolicy != userprefdomain.NetworkWAN && !restricted {
		return "", false, nil
	}
	addr, err := parseIP(in.IPAddress)
	if err != nil {
		return "", false, err
	}
	network := classify(addr)
	switch {
	case pref.NetworkPolicy == userprefdomain.NetworkLAN && network != domain.NetworkLAN:
		return domain.StopIPPolicyLANOnly, true, nil
	case pref.NetworkPolicy == userprefdomain.NetworkWAN && network != domain.NetworkWAN:
		return domain.StopIPPolicyWANOnly, true, nil
	case restricted && !ipAllowed(addr, pref.AllowedIPs):
		return domain.StopIPPolicyNotAllowed, true, nil
	}
	return "", false, nil
}

func timeBlocked(in Input) bool {
	weekday := in.Now.Weekday()
	minute := in.Now.Hour()*60 + in.Now.Minute()
	for _, r := range in.Rules {
		if r.Action != timeruledomain.ActionBlock {
			continue
		}
		if !timeruledomain.AppliesTo(r, in.UserID, in.DeviceIdentifier) {
			continue
		}
		if timeruledomain.Matches(r, weekday, minute) {
			return true
		}
	}
	return false
}

func approval(in Input, msgs MessageSource) Decision {
	status := devicedomain.StatusPending
	if in.Device != nil {
		status = in.Device.Status
	}
	temporary := in.Device.HasTemporaryAccess(in.Now)

	switch status {
	case devicedomain.StatusApproved:
		return domain.Allow(domain.ReasonApproved)
	case devicedomain.StatusRejected:
		if temporary {
			return domain.Allow(domain.ReasonTemporaryAccess)
		}
		return block(domain.StopDeviceRejected, msgs, nil)
	default:
		if temporary {
			return domain.Allow(domain.ReasonTemporaryAccess)
		}
		if effectiveDefaultBlock(in) {
			return block(domain.StopDevicePending, msgs, nil)
		}
		return domain.Allow(domain.ReasonDefaultAllow)
	}
}

func effectiveDefaultBlock(in Input) bool {
	if in.Preference != nil && in.Preference.DefaultBlock != nil {
		return *in.Preference.DefaultBlock
	}
	return in.GlobalDefaultBlock
}
