package domain

import "time"

// AuditLog represents one admin mutation.
type AuditLog struct {
	ID         string
	Actor      string
	Action     string
	Resource   string
	ResourceID string
	Metadata   string
	CreatedAt  time.Time
}

// Actions recorded by the admin surfaces.
const (
	ActionDeviceApprove   = "device_approve"
	ActionDeviceReject    = "device_reject"
	ActionDeviceDelete    = "device_delete"
	ActionDeviceGrant     = "device_grant_temporary"
	ActionDeviceRevoke    = "device_revoke_temporary"
	ActionRuleCreate      = "rule_create"
	ActionRuleUpdate      = "rule_update"
	ActionRuleDelete      = "rule_delete"
	ActionRulePreset      = "rule_preset"
	ActionPreferenceWrite = "preference_write"
	ActionSettingWrite    = "setting_write"
)

// Resources.
const (
	ResourceDevice     = "device"
	ResourceTimeRule   = "time_rule"
	ResourcePreference = "user_preference"
	ResourceSetting    = "setting"
)
