package engine

import (
	"strings"

	"streamguard/internal/policy/domain"
	settingsdomain "streamguard/internal/settings/domain"
)

// MessageSource returns configured message overrides; "" means none.
type MessageSource interface {
	Message(key string) string
}

// GenericFallback is shown when a termination has no more specific message.
const GenericFallback = "This stream was stopped by the server administrator."

var fallbackMessages = map[domain.StopCode]string{
	domain.StopDevicePending:      "This device is waiting for approval by the server owner.",
	domain.StopDeviceRejected:     "This device is not allowed to stream from this server.",
	domain.StopIPPolicyLANOnly:    "Streaming is only allowed from the local network.",
	domain.StopIPPolicyWANOnly:    "Streaming is only allowed from outside the local network.",
	domain.StopIPPolicyNotAllowed: "Streaming is not allowed from this network address.",
	domain.StopTimeRestricted:     "Streaming is not allowed at this time.",
}

var messageKeys = map[domain.StopCode]string{
	domain.StopDevicePending:      settingsdomain.KeyMessageDevicePending,
	domain.StopDeviceRejected:     settingsdomain.KeyMessageDeviceRejected,
	domain.StopIPPolicyLANOnly:    settingsdomain.KeyMessageIPLanOnly,
	domain.StopIPPolicyWANOnly:    settingsdomain.KeyMessageIPWanOnly,
	domain.StopIPPolicyNotAllowed: settingsdomain.KeyMessageIPNotAllowed,
	domain.StopTimeRestricted:     settingsdomain.KeyMessageTimeRestricted,
}

// MessageFor returns the configured message for code, else the built-in text, else the generic message.
func MessageFor(code domain.StopCode, src MessageSource) string {
	if src != nil {
		if key, ok := messageKeys[code]; ok {
			if m := strings.TrimSpace(src.Message(key)); m != "" {
				return m
			}
		}
	}
	if m, ok := fallbackMessages[code]; ok {
		return m
	}
	return GenericMessage(src)
}

// GenericMessage returns the configured generic message or GenericFallback.
func GenericMessage(src MessageSource) string {
	if src != nil {
		if m := strings.TrimSpace(src.Message(settingsdomain.KeyMessageGeneric)); m != "" {
			return m
		}
	}
	return GenericFallback
}
