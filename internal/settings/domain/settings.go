// Package domain declares the runtime settings keys, their types and defaults.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the declared type a stored value is coerced to.
type Type string

const (
	TypeString Type = "string"
	TypeNumber Type = "number"
	TypeBool   Type = "boolean"
	TypeJSON   Type = "json"
)

// Recognized keys.
const (
	KeyRefreshInterval       = "refresh_interval"
	KeyDefaultBlock          = "default_block"
	KeyTimezoneOffset        = "timezone_offset"
	KeyExemptProducts        = "exempt_products"
	KeyDefaultNetworkPolicy  = "default_network_policy"
	KeyDefaultIPAccessPolicy = "default_ip_access_policy"
	KeyProviderType          = "provider_type"
	KeyProviderURL           = "provider_url"
	KeyProviderToken         = "provider_token"

	KeyMessageGeneric        = "message_generic"
	KeyMessageDevicePending  = "message_device_pending"
	KeyMessageDeviceRejected = "message_device_rejected"
	KeyMessageIPLanOnly      = "message_ip_policy_lan_only"
	KeyMessageIPWanOnly      = "message_ip_policy_wan_only"
	KeyMessageIPNotAllowed   = "message_ip_policy_not_allowed"
	KeyMessageTimeRestricted = "message_time_restricted"
)

var (
	// ErrUnknownKey is returned for keys that are not declared.
	ErrUnknownKey = errors.New("unknown setting key")
	// ErrInvalidValue is returned when a raw value cannot be coerced to the key's declared type.
	ErrInvalidValue = errors.New("invalid setting value")
)

// Definition declares one setting.
type Definition struct {
	Key     string
	Type    Type
	Default string
	// Check validates an already coerced value; nil means any value of the type is accepted.
	Check func(Value) error
}

// Value is a coerced setting value. Only the field matching Type is meaningful.
type Value struct {
	Type   Type
	String string
	Number float64
	Bool   bool
	JSON   json.RawMessage
}

var definitions = map[string]Definition{
	KeyRefreshInterval:       {Key: KeyRefreshInterval, Type: TypeNumber, Default: "10", Check: checkRefreshInterval},
	KeyDefaultBlock:          {Key: KeyDefaultBlock, Type: TypeBool, Default: "false"},
	KeyTimezoneOffset:        {Key: KeyTimezoneOffset, Type: TypeString, Default: "+00:00", Check: checkOffset},
	KeyExemptProducts:        {Key: KeyExemptProducts, Type: TypeJSON, Default: `["Plexamp"]`, Check: checkStringList},
	KeyDefaultNetworkPolicy:  {Key: KeyDefaultNetworkPolicy, Type: TypeString, Default: "both", Check: oneOf("both", "lan", "wan")},
	KeyDefaultIPAccessPolicy: {Key: KeyDefaultIPAccessPolicy, Type: TypeString, Default: "all", Check: oneOf("all", "restricted")},
	KeyProviderType:          {Key: KeyProviderType, Type: TypeString, Default: "plex", Check: oneOf("plex", "jellyfin")},
	KeyProviderURL:           {Key: KeyProviderURL, Type: TypeString},
	KeyProviderToken:         {Key: KeyProviderToken, Type: TypeString},

	KeyMessageGeneric:        {Key: KeyMessageGeneric, Type: TypeString},
	KeyMessageDevicePending:  {Key: KeyMessageDevicePending, Type: TypeString},
	KeyMessageDeviceRejected: {Key: KeyMessageDeviceRejected, Type: TypeString},
	KeyMessageIPLanOnly:      {Key: KeyMessageIPLanOnly, Type: TypeString},
	KeyMessageIPWanOnly:      {Key: KeyMessageIPWanOnly, Type: TypeString},
	KeyMessageIPNotAllowed:   {Key: KeyMessageIPNotAllowed, Type: TypeString},
	KeyMessageTimeRestricted: {Key: KeyMessageTimeRestricted, Type: TypeString},
}

func checkRefreshInterval(v Value) error {
	if v.Number < 1 {
		return errors.New("must be at least 1 second")
	}
	return nil
}

func checkOffset(v Value) error {
	_, err := ParseOffset(v.String)
	return err
}

func checkStringList(v Value) error {
	var list []string
	return json.Unmarshal(v.JSON, &list)
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	d, ok := definitions[key]
	return d, ok
}

// Definitions returns every declared setting.
func Definitions() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, d)
	}
	return out
}

// Coerce converts raw to the definition's declared type and runs its Check.
func Coerce(def Definition, raw string) (Value, error) {
	v := Value{Type: def.Type}
	raw = strings.TrimSpace(raw)
	switch def.Type {
	case TypeString:
		v.String = raw
	case TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidValue, def.Key, raw)
		}
		v.Number = n
	case TypeBool:
		b, err := parseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalidValue, def.Key, raw)
		}
		v.Bool = b
	case TypeJSON:
		if !json.Valid([]byte(raw)) {
			return Value{}, fmt.Errorf("%w: %s: not valid JSON", ErrInvalidValue, def.Key)
		}
		v.JSON = json.RawMessage(raw)
	default:
		return Value{}, fmt.Errorf("%w: %s: undeclared type %q", ErrInvalidValue, def.Key, def.Type)
	}
	if def.Check != nil {
		if err := def.Check(v); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, def.Key, err)
		}
	}
	return v, nil
}

// ParseOffset parses a fixed UTC offset such as "+05:30", "-0800", "Z" or "UTC" into a location.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "Z", "UTC":
		return time.UTC, nil
	}
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return nil, fmt.Errorf("offset %q must look like +HH:MM", s)
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(s[1:], ":", "")
	if (len(body) != 2 && len(body) != 4) || !allDigits(body) {
		return nil, fmt.Errorf("offset %q must look like +HH:MM", s)
	}
	hours, err := strconv.Atoi(body[:2])
	if err != nil {
		return nil, fmt.Errorf("offset %q: bad hours", s)
	}
	minutes := 0
	if len(body) == 4 {
		if minutes, err = strconv.Atoi(body[2:]); err != nil {
			return nil, fmt.Errorf("offset %q: bad minutes", s)
		}
	}
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("offset %q out of range", s)
	}
	seconds := sign * (hours*3600 + minutes*60)
	if seconds == 0 {
		return time.UTC, nil
	}
	return time.FixedZone("UTC"+s, seconds), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func oneOf(allowed ...string) func(Value) error {
	return func(v Value) error {
		for _, a := range allowed {
			if v.String == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
