// Package domain holds the policy verdict types and the stable stop codes consumed by notification and
// UI collaborators.
package domain

// StopCode is the machine-readable reason a session was blocked.
type StopCode string

const (
	StopDevicePending      StopCode = "DEVICE_PENDING"
	StopDeviceRejected     StopCode = "DEVICE_REJECTED"
	StopIPPolicyLANOnly    StopCode = "IP_POLICY_LAN_ONLY"
	StopIPPolicyWANOnly    StopCode = "IP_POLICY_WAN_ONLY"
	StopIPPolicyNotAllowed StopCode = "IP_POLICY_NOT_ALLOWED"
	StopTimeRestricted     StopCode = "TIME_RESTRICTED"
)

// StopCodes lists every stop code.
func StopCodes() []StopCode {
	return []StopCode{
		StopDevicePending, StopDeviceRejected, StopIPPolicyLANOnly,
		StopIPPolicyWANOnly, StopIPPolicyNotAllowed, StopTimeRestricted,
	}
}

// Reason explains an allow verdict; block verdicts carry a StopCode instead.
type Reason string

const (
	ReasonExemptProduct   Reason = "exempt_product"
	ReasonTemporaryAccess Reason = "temporary_access"
	ReasonApproved        Reason = "approved"
	ReasonDefaultAllow    Reason = "default_allow"
	ReasonBlocked         Reason = "blocked"
)

// Network is the LAN/WAN classification of a client address.
type Network string

const (
	NetworkLAN Network = "lan"
	NetworkWAN Network = "wan"
)

// Decision is the verdict for one live session.
type Decision struct {
	Block    bool
	StopCode StopCode
	Reason   Reason
	// Message is the viewer-facing text for block verdicts.
	Message string
	// IPError is set when the client address could not be validated and IP checks were skipped.
	IPError error
}

// Allow returns an allow verdict.
func Allow(reason Reason) Decision {
	return Decision{Reason: reason}
}
